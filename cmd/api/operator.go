package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sitecms/api/internal/authpw"
	"sitecms/api/internal/store"
)

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage operator accounts",
}

var (
	operatorEmail    string
	operatorName     string
	operatorRole     string
	operatorPassword string
)

var operatorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an operator account",
	Example: `  sitecms-api operator add --email ana@example.org --name "Ana" --role admin
  SITECMS_OPERATOR_PASSWORD=... sitecms-api operator add --email bo@example.org --name Bo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := operatorPassword
		if password == "" {
			password = os.Getenv("SITECMS_OPERATOR_PASSWORD")
		}
		if password == "" {
			return errors.New("a password is required: pass --password or set SITECMS_OPERATOR_PASSWORD")
		}

		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		passwords := authpw.NewService(store.NewPostgresStore(db))
		op, err := passwords.CreateOperator(cmd.Context(), authpw.CreateOperatorRequest{
			Email:       operatorEmail,
			Password:    password,
			DisplayName: operatorName,
			Role:        operatorRole,
		})
		if err != nil {
			return fmt.Errorf("create operator: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created operator %s (%s, %s)\n", op.Email, op.ID, op.Role)
		return nil
	},
}

func init() {
	operatorAddCmd.Flags().StringVar(&operatorEmail, "email", "", "operator email address")
	operatorAddCmd.Flags().StringVar(&operatorName, "name", "", "display name")
	operatorAddCmd.Flags().StringVar(&operatorRole, "role", "editor", "role: admin, editor or viewer")
	operatorAddCmd.Flags().StringVar(&operatorPassword, "password", "", "initial password (or SITECMS_OPERATOR_PASSWORD)")
	_ = operatorAddCmd.MarkFlagRequired("email")
	_ = operatorAddCmd.MarkFlagRequired("name")
	operatorCmd.AddCommand(operatorAddCmd)
}
