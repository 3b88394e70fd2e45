package snapchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain address",
			in:   "alex0@example.com",
			// sha256("alex0@example.com")
			want: "dc38f3cf58404266a6b89bc711d9e05a255415ecbcf69c230edcd7144a9792a7",
		},
		{
			name: "upper case is normalized",
			in:   "ALEX0@EXAMPLE.COM",
			want: "dc38f3cf58404266a6b89bc711d9e05a255415ecbcf69c230edcd7144a9792a7",
		},
		{
			name: "surrounding whitespace is trimmed",
			in:   "  alex0@example.com\t",
			want: "dc38f3cf58404266a6b89bc711d9e05a255415ecbcf69c230edcd7144a9792a7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HashIdentity(tt.in))
		})
	}
}

func TestHashIdentity_Distinct(t *testing.T) {
	assert.NotEqual(t, HashIdentity("alex0@example.com"), HashIdentity("alex1@example.com"))
}
