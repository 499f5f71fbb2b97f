package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataScan(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    Metadata
		wantErr bool
	}{
		{name: "null", value: nil, want: Metadata{}},
		{name: "bytes", value: []byte(`{"price_ref":"price_t2"}`), want: Metadata{"price_ref": "price_t2"}},
		{name: "string", value: `{"referral_code":"FRIEND"}`, want: Metadata{"referral_code": "FRIEND"}},
		{name: "invalid json", value: []byte(`{`), wantErr: true},
		{name: "unsupported type", value: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Metadata
			err := m.Scan(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestMetadataValue(t *testing.T) {
	var empty Metadata
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	v, err = Metadata{"currency": "usd"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"currency":"usd"}`, string(v.([]byte)))
}

func TestMetadataMerge(t *testing.T) {
	base := Metadata{"external_ref": "sub_1", "currency": "usd"}
	merged := base.Merge(Metadata{"currency": "eur", "price_ref": "", "referral_code": "FRIEND"})

	assert.Equal(t, Metadata{
		"external_ref":  "sub_1",
		"currency":      "eur",
		"referral_code": "FRIEND",
	}, merged)

	var nilMeta Metadata
	assert.Equal(t, Metadata{"a": "b"}, nilMeta.Merge(Metadata{"a": "b"}))
}
