package content

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func strPtr(v string) *string { return &v }

func TestDefaultIsIndependentCopy(t *testing.T) {
	first := Default()
	first.Gallery[0].Caption = "changed"
	first.Programs[0].Stats[0].Value = "changed"

	second := Default()
	if second.Gallery[0].Caption == "changed" {
		t.Fatal("Default() shares gallery slice between calls")
	}
	if second.Programs[0].Stats[0].Value == "changed" {
		t.Fatal("Default() shares program stats between calls")
	}
	if second.LastUpdated != nil {
		t.Fatal("baseline must not carry lastUpdated")
	}
}

func TestParseBaselineRejectsDuplicateGalleryIDs(t *testing.T) {
	raw := []byte(`
gallery:
  - id: a
    url: /one.jpg
  - id: a
    url: /two.jpg
`)
	if _, err := parseBaseline(raw); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestMergeEmptyRemoteReturnsBaseline(t *testing.T) {
	partial, err := DecodePartial(nil)
	if err != nil {
		t.Fatalf("DecodePartial() error = %v", err)
	}
	merged := Merge(Default(), partial)
	if !reflect.DeepEqual(merged, Default()) {
		t.Fatalf("expected baseline, got %+v", merged)
	}

	partial, err = DecodePartial([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodePartial({}) error = %v", err)
	}
	if !reflect.DeepEqual(Merge(Default(), partial), Default()) {
		t.Fatal("merging {} should return baseline")
	}
}

func TestMergeKeepsAbsentHeroFields(t *testing.T) {
	partial, err := DecodePartial([]byte(`{"hero":{"headline":"X"}}`))
	if err != nil {
		t.Fatalf("DecodePartial() error = %v", err)
	}
	base := Default()
	merged := Merge(base, partial)

	if merged.Hero.Headline != "X" {
		t.Fatalf("expected headline X, got %q", merged.Hero.Headline)
	}
	if merged.Hero.Subheadline != base.Hero.Subheadline || merged.Hero.Image != base.Hero.Image {
		t.Fatalf("expected default subheadline/image, got %+v", merged.Hero)
	}

	expected := Default()
	expected.Hero.Headline = "X"
	if !reflect.DeepEqual(merged, expected) {
		t.Fatalf("unexpected merged document: %+v", merged)
	}
}

func TestMergeNestedCompanyRecords(t *testing.T) {
	partial, err := DecodePartial([]byte(`{
		"company": {"name": "New Name", "social": {"instagram": "https://instagram.com/new"}, "bank": {"upi": "new@upi"}}
	}`))
	if err != nil {
		t.Fatalf("DecodePartial() error = %v", err)
	}
	base := Default()
	merged := Merge(base, partial)

	if merged.Company.Name != "New Name" {
		t.Fatalf("unexpected name %q", merged.Company.Name)
	}
	if merged.Company.Email != base.Company.Email {
		t.Fatalf("email should keep default, got %q", merged.Company.Email)
	}
	if merged.Company.Social.Instagram != "https://instagram.com/new" {
		t.Fatalf("unexpected instagram %q", merged.Company.Social.Instagram)
	}
	if merged.Company.Social.Facebook != base.Company.Social.Facebook {
		t.Fatal("absent social link should keep default")
	}
	if merged.Company.Bank.UPI != "new@upi" || merged.Company.Bank.IFSC != base.Company.Bank.IFSC {
		t.Fatalf("unexpected bank merge: %+v", merged.Company.Bank)
	}
}

func TestMergeReplacesListsAndScalars(t *testing.T) {
	updated := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(map[string]any{
		"gallery":     []GalleryItem{{ID: "only", URL: "/only.jpg"}},
		"stories":     []Story{},
		"maintenance": true,
		"lastUpdated": updated,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	partial, err := DecodePartial(raw)
	if err != nil {
		t.Fatalf("DecodePartial() error = %v", err)
	}
	merged := Merge(Default(), partial)

	if len(merged.Gallery) != 1 || merged.Gallery[0].ID != "only" {
		t.Fatalf("expected gallery replaced, got %+v", merged.Gallery)
	}
	if merged.Stories == nil || len(merged.Stories) != 0 {
		t.Fatalf("expected empty stories list, got %+v", merged.Stories)
	}
	if !merged.Maintenance {
		t.Fatal("expected maintenance true")
	}
	if merged.LastUpdated == nil || !merged.LastUpdated.Equal(updated) {
		t.Fatalf("unexpected lastUpdated %v", merged.LastUpdated)
	}
	if !reflect.DeepEqual(merged.Programs, Default().Programs) {
		t.Fatal("absent programs should keep default")
	}
}

func TestMergeNullFieldKeepsBaseline(t *testing.T) {
	partial, err := DecodePartial([]byte(`{"hero": null, "programs": null}`))
	if err != nil {
		t.Fatalf("DecodePartial() error = %v", err)
	}
	if !reflect.DeepEqual(Merge(Default(), partial), Default()) {
		t.Fatal("null fields should keep baseline values")
	}
}

func TestDecodePartialRejectsInvalidJSON(t *testing.T) {
	if _, err := DecodePartial([]byte(`{"hero":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestApplyHeroPatchIsShallowAndImmutable(t *testing.T) {
	before := Default()
	after, err := Apply(before, HeroPatch{Headline: strPtr("New")})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if after.Hero.Headline != "New" {
		t.Fatalf("expected New, got %q", after.Hero.Headline)
	}
	if after.Hero.Subheadline != before.Hero.Subheadline {
		t.Fatal("subheadline should be untouched")
	}
	if before.Hero.Headline == "New" {
		t.Fatal("Apply mutated its input")
	}
}

func TestApplyCompanyPatchReplacesNestedRecordWhole(t *testing.T) {
	before := Default()
	after, err := Apply(before, CompanyPatch{
		Phone:  strPtr("+1 555"),
		Social: &SocialLinks{Instagram: "https://instagram.com/only"},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if after.Company.Phone != "+1 555" || after.Company.Name != before.Company.Name {
		t.Fatalf("unexpected company %+v", after.Company)
	}
	if after.Company.Social.Facebook != "" {
		t.Fatal("social is replaced whole by a patch")
	}
	if after.Company.Bank != before.Company.Bank {
		t.Fatal("bank should be untouched")
	}
}

func TestApplyListReplacementDoesNotAliasCaller(t *testing.T) {
	items := []GalleryItem{{ID: "a", URL: "/a.jpg"}, {ID: "b", URL: "/b.jpg"}}
	after, err := Apply(Default(), GalleryList(items))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	items[0].Caption = "mutated by caller"
	if after.Gallery[0].Caption != "" {
		t.Fatal("applied list aliases caller slice")
	}
}

func TestApplyRejectsDuplicateIDs(t *testing.T) {
	_, err := Apply(Default(), ProgramsList{{ID: "p"}, {ID: "p"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	_, err = Apply(Default(), GalleryList{{ID: "g"}, {ID: "g"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestApplyNilListBecomesEmpty(t *testing.T) {
	after, err := Apply(Default(), TeamList(nil))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if after.Team == nil || len(after.Team) != 0 {
		t.Fatalf("expected empty team, got %+v", after.Team)
	}
}

func TestAddGalleryItemPrependsWithFreshID(t *testing.T) {
	list := Default().Gallery
	out, added := AddGalleryItem(list, GalleryItem{ID: list[0].ID, Category: "events", URL: "/new.jpg"})

	if len(out) != len(list)+1 {
		t.Fatalf("expected %d items, got %d", len(list)+1, len(out))
	}
	if out[0].ID != added.ID || out[0].URL != "/new.jpg" {
		t.Fatalf("new item should be first, got %+v", out[0])
	}
	for _, existing := range list {
		if existing.ID == added.ID {
			t.Fatalf("new id %q collides with existing item", added.ID)
		}
	}
	for i, existing := range list {
		if out[i+1] != existing {
			t.Fatalf("existing order changed at %d", i)
		}
	}
}

func TestRemoveGalleryItemRemovesExactlyOne(t *testing.T) {
	list := []GalleryItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, removed := RemoveGalleryItem(list, "b")
	if !removed {
		t.Fatal("expected removal")
	}
	if !reflect.DeepEqual(out, []GalleryItem{{ID: "a"}, {ID: "c"}}) {
		t.Fatalf("unexpected list %+v", out)
	}
	if len(list) != 3 {
		t.Fatal("input list modified")
	}

	out, removed = RemoveGalleryItem(list, "missing")
	if removed || len(out) != 3 {
		t.Fatalf("missing id should be a no-op, got removed=%v len=%d", removed, len(out))
	}
}

func TestParseSection(t *testing.T) {
	for _, section := range Sections() {
		parsed, err := ParseSection(string(section))
		if err != nil || parsed != section {
			t.Fatalf("ParseSection(%q) = %q, %v", section, parsed, err)
		}
	}
	if _, err := ParseSection("footer"); !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("expected ErrUnknownSection, got %v", err)
	}
}

func TestActionLabel(t *testing.T) {
	if got := ActionLabel(SectionHero); got != "update hero" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := ActionLabel(SectionImpactStats); got != "update impact stats" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestApplyValidatesOnlyTheChangedSection(t *testing.T) {
	doc := Default()
	doc.Programs = []Program{{ID: "dup"}, {ID: "dup"}}

	after, err := Apply(doc, HeroPatch{Headline: strPtr("Still editable")})
	if err != nil {
		t.Fatalf("hero edit should not be blocked by programs, got %v", err)
	}
	if after.Hero.Headline != "Still editable" {
		t.Fatalf("unexpected headline %q", after.Hero.Headline)
	}

	if _, err := Apply(doc, ProgramsList{{ID: "a"}, {ID: "a"}}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := Apply(doc, ProgramsList{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("replacing the list should clear the duplicate, got %v", err)
	}
}

func TestRepairDuplicateIDs(t *testing.T) {
	doc := Default()
	doc.Programs = []Program{{ID: "p"}, {ID: "p"}, {ID: "q"}}
	doc.Gallery = []GalleryItem{{ID: "g", Caption: "one"}, {ID: "g", Caption: "two"}, {ID: "g", Caption: "three"}}

	repaired, repeated := RepairDuplicateIDs(doc)
	if len(repeated) != 3 {
		t.Fatalf("expected 3 repeated ids, got %v", repeated)
	}
	if err := Validate(repaired); err != nil {
		t.Fatalf("repaired document still invalid: %v", err)
	}
	if repaired.Programs[0].ID != "p" || repaired.Gallery[0].ID != "g" || repaired.Gallery[2].Caption != "three" {
		t.Fatalf("first occurrences and order must be kept: %+v %+v", repaired.Programs, repaired.Gallery)
	}
	if doc.Gallery[1].ID != "g" {
		t.Fatal("RepairDuplicateIDs modified its input")
	}

	if _, none := RepairDuplicateIDs(Default()); len(none) != 0 {
		t.Fatalf("valid document reported repeated ids %v", none)
	}
}
