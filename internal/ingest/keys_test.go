// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    Details
		wantErr bool
	}{
		{
			name: "simple essence",
			key:  "incoming/COLL-ITEM-file.wav",
			want: Details{CollectionIdentifier: "COLL", ItemIdentifier: "ITEM", Filename: "COLL-ITEM-file.wav", Extension: "wav"},
		},
		{
			name: "rest with dashes and upper case extension",
			key:  "damsmart/NT1-001-side-a-take-2.MP4",
			want: Details{CollectionIdentifier: "NT1", ItemIdentifier: "001", Filename: "NT1-001-side-a-take-2.MP4", Extension: "mp4"},
		},
		{name: "missing item", key: "incoming/COLL-file.wav", wantErr: true},
		{name: "missing extension", key: "incoming/COLL-ITEM-file", wantErr: true},
		{name: "item too long", key: "incoming/COLL-" + strings.Repeat("A", 31) + "-file.wav", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				se, ok := AsStepError(err)
				require.True(t, ok)
				assert.Equal(t, ErrNameValidation, se.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchSpecial(t *testing.T) {
	coll, ok, err := MatchSpecial("incoming/COLL-deposit.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "COLL", coll)

	_, ok, err = MatchSpecial("incoming/COLL-ITEM-file.wav")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = MatchSpecial("damsmart/COLL-deposit.pdf")
	require.NoError(t, err)
	assert.False(t, ok, "only incoming/ carries deposit forms")

	for _, key := range []string{"incoming/COLL-deposit.docx", "incoming/COLL-deposit-2.pdf", "incoming/COLL-deposit.PDF"} {
		_, ok, err = MatchSpecial(key)
		require.Error(t, err, key)
		assert.False(t, ok)
		se, isStep := AsStepError(err)
		require.True(t, isStep)
		assert.Equal(t, ErrNameInvalidSpecialFile, se.Name)
	}

	_, ok, err = MatchSpecial("incoming/COLL-depositions-file.wav")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDerivedKeys(t *testing.T) {
	assert.Equal(t, "rejected/COLL-ITEM-file.wav", RejectedKey("incoming/COLL-ITEM-file.wav"))
	assert.Equal(t, "rejected/COLL-ITEM-file.mp4", RejectedKey("damsmart/COLL-ITEM-file.mp4"))
	assert.Equal(t, "output/COLL-ITEM-file.wav/", OutputPrefixFor("COLL-ITEM-file.wav"))
	assert.Equal(t, "COLL/ITEM/COLL-ITEM-file.wav", CatalogKey("COLL", "ITEM", "COLL-ITEM-file.wav"))
	assert.Equal(t, "COLL/pdsc_admin/COLL-deposit.pdf", SpecialCatalogKey("COLL", "COLL-deposit.pdf"))
	assert.Equal(t, "COLL-ITEM-file", Stem("COLL-ITEM-file.wav"))
	assert.True(t, IsTriggerKey("incoming/a"))
	assert.True(t, IsTriggerKey("damsmart/a"))
	assert.False(t, IsTriggerKey("output/a"))
}
