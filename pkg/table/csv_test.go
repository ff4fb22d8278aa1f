package table

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestReadCSV(t *testing.T) {
	in := "Province/State,Country/Region,Lat,Long,1/22/20,1/23/20\n" +
		",Afghanistan,33.9,67.7,0,1\n" +
		"Alberta,Canada,53.9,-116.5,2,\n"

	got, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	want := &RawTable{
		Header: []string{"Province/State", "Country/Region", "Lat", "Long", "1/22/20", "1/23/20"},
		Rows: [][]string{
			{"", "Afghanistan", "33.9", "67.7", "0", "1"},
			{"Alberta", "Canada", "53.9", "-116.5", "2", ""},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_BOM(t *testing.T) {
	in := "\ufeffProvince/State,Country/Region,Lat,Long\n,France,46.2,2.2\n"
	got, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got.Header[0] != ColProvinceState {
		t.Errorf("Header[0] = %q, want %q", got.Header[0], ColProvinceState)
	}
}

func TestReadCSV_ShortRowPadded(t *testing.T) {
	in := "Province/State,Country/Region,Lat,Long,1/22/20\n,Chad,15.4\n"
	got, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got.Rows[0]) != 5 {
		t.Fatalf("row len = %d, want 5", len(got.Rows[0]))
	}
	if got.Rows[0][3] != "" || got.Rows[0][4] != "" {
		t.Errorf("padded cells = %q, want empty", got.Rows[0][3:])
	}
}

func TestReadCSV_LongRow(t *testing.T) {
	in := "Province/State,Country/Region,Lat,Long\n,Chad,15.4,18.7,99\n"
	if _, err := ReadCSV(strings.NewReader(in)); err == nil {
		t.Fatal("expected error for row wider than header")
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestReadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/raw/confirmed_20230101.csv", []byte("Province/State,Country/Region,Lat,Long\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(fs, "/raw/confirmed_20230101.csv")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(got.Rows))
	}

	if _, err := ReadFile(fs, "/raw/missing.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := &RawTable{Header: []string{"a"}, Rows: [][]string{{"1"}}}
	c := orig.Clone()
	c.Rows[0][0] = "2"
	c.Header[0] = "b"
	if orig.Rows[0][0] != "1" || orig.Header[0] != "a" {
		t.Error("Clone shares storage with original")
	}
}

func TestLongTableColumns(t *testing.T) {
	lt := &LongTable{Metric: "deaths"}
	want := []string{"Province/State", "Country/Region", "Lat", "Long", "date", "deaths"}
	if diff := cmp.Diff(want, lt.Columns()); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}
