package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edit(id string, start, end int, replacement string) Fix {
	return Fix{
		ID:              id,
		Location:        Location{Path: "x", Span: Span{Start: start, End: end}},
		ReplacementText: replacement,
	}
}

func TestSplice(t *testing.T) {
	content := []byte("foo12345678 tail")

	tests := []struct {
		name    string
		fixes   []Fix
		want    string
		wantErr bool
	}{
		{
			name:  "single replacement",
			fixes: []Fix{edit("f1", 0, 3, "bar_baz")},
			want:  "bar_baz12345678 tail",
		},
		{
			name: "two edits descending order",
			fixes: []Fix{
				edit("f2", 12, 16, "TAIL"),
				edit("f1", 0, 3, "bar"),
			},
			want: "bar12345678 TAIL",
		},
		{
			name:  "pure insertion at empty span",
			fixes: []Fix{edit("f1", 3, 3, "-X-")},
			want:  "foo-X-12345678 tail",
		},
		{
			name:  "deletion",
			fixes: []Fix{edit("f1", 0, 4, "")},
			want:  "2345678 tail",
		},
		{
			name:    "span beyond bounds",
			fixes:   []Fix{edit("f1", 10, 99, "x")},
			wantErr: true,
		},
		{
			name: "ascending order rejected",
			fixes: []Fix{
				edit("f1", 0, 3, "bar"),
				edit("f2", 12, 16, "TAIL"),
			},
			wantErr: true,
		},
		{
			name: "overlapping edits rejected",
			fixes: []Fix{
				edit("f2", 2, 6, "yy"),
				edit("f1", 0, 3, "xx"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Splice(content, tt.fixes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, "foo12345678 tail", string(content), "input must not be modified")
		})
	}
}
