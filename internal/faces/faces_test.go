package faces

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaultIsValid(t *testing.T) {
	list, err := readEmbedded()
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(list); err != nil {
		t.Fatalf("embedded faces invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		ok   bool
	}{
		{"eight distinct", []string{"a", "b", "c", "d", "e", "f", "g", "h"}, true},
		{"too few", []string{"a", "b"}, false},
		{"too many", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}, false},
		{"duplicate", []string{"a", "b", "c", "d", "e", "f", "g", "a"}, false},
		{"empty", []string{"a", "b", "c", "d", "e", "f", "g", ""}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if (err == nil) != tc.ok {
				t.Errorf("Validate(%v) err = %v, want ok=%v", tc.in, err, tc.ok)
			}
		})
	}
}

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	got, err := parse(strings.NewReader("# header\n\n  🍎 \n🍌\n#x\n🍒\n"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "🍎,🍌,🍒" {
		t.Errorf("parse = %v", got)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.txt")
	body := "1\n2\n3\n4\n5\n6\n7\n8\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := readFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(list); err != nil {
		t.Errorf("file faces invalid: %v", err)
	}
}

func TestFacesBeforeInitReturnsCopy(t *testing.T) {
	a := Faces()
	if len(a) != 8 {
		t.Fatalf("len = %d", len(a))
	}
	a[0] = "changed"
	if Faces()[0] == "changed" {
		t.Error("Faces returned shared slice")
	}
}
