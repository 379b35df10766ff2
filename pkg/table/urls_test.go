package table

import (
	"reflect"
	"regexp"
	"testing"
)

func TestTable_ExtractURLs(t *testing.T) {
	tbl := &Table{
		Columns: []string{"id", "20", "21"},
		Rows: []Row{
			{ID: 1, Values: map[string]string{
				"20": "https://fs1.formsite.com/AbCdEf/files/f-1-2-photo.jpg | https://fs1.formsite.com/AbCdEf/files/f-1-3-scan.pdf",
				"21": "not a url",
			}},
			{ID: 2, Values: map[string]string{
				// Duplicate of row 1's first file plus an off-account URL.
				"20": "https://fs1.formsite.com/AbCdEf/files/f-1-2-photo.jpg",
				"21": "https://other.example.com/files/x.jpg",
			}},
		},
	}

	urls := tbl.ExtractURLs(UploadURLPattern("fs1", "AbCdEf"), nil)

	want := []string{
		"https://fs1.formsite.com/AbCdEf/files/f-1-2-photo.jpg",
		"https://fs1.formsite.com/AbCdEf/files/f-1-3-scan.pdf",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("ExtractURLs() = %v, want %v", urls, want)
	}
}

func TestTable_ExtractURLs_Filter(t *testing.T) {
	tbl := &Table{
		Rows: []Row{
			{ID: 1, Values: map[string]string{
				"20": "https://fs1.formsite.com/AbCdEf/files/a.jpg | https://fs1.formsite.com/AbCdEf/files/b.pdf",
			}},
		},
	}

	urls := tbl.ExtractURLs(UploadURLPattern("fs1", "AbCdEf"), regexp.MustCompile(`\.jpg$`))

	want := []string{"https://fs1.formsite.com/AbCdEf/files/a.jpg"}
	if !reflect.DeepEqual(urls, want) {
		t.Errorf("ExtractURLs() = %v, want %v", urls, want)
	}
}

func TestTable_ExtractURLs_FullCellMatchOnly(t *testing.T) {
	tbl := &Table{
		Rows: []Row{
			{ID: 1, Values: map[string]string{
				// Embedded URL inside prose must not be extracted.
				"20": "see https://fs1.formsite.com/AbCdEf/files/a.jpg for details",
			}},
		},
	}

	if urls := tbl.ExtractURLs(UploadURLPattern("fs1", "AbCdEf"), nil); len(urls) != 0 {
		t.Errorf("ExtractURLs() = %v, want empty", urls)
	}
}
