// SPDX-License-Identifier: GPL-3.0-or-later

package isavail

import (
	"strconv"
	"strings"
	"testing"

	"github.com/bassosimone/runtimex"
	"github.com/stretchr/testify/require"
)

func TestQueryString(t *testing.T) {
	tests := []struct {
		name     string
		query    *Query
		expected string
	}{
		{
			name: "VersionOneWithSuggest",
			query: &Query{
				Version:  1,
				Cookie:   "abcdefghij1234567890",
				Language: LanguagePT,
				ID:       4294967295,
				FQDN:     "example.com.br",
				Suggest:  true,
			},
			expected: "1 abcdefghij1234567890 1 4294967295 example.com.br 1",
		},

		{
			name: "VersionOneWithoutSuggest",
			query: &Query{
				Version:  1,
				Cookie:   NoCookie,
				Language: LanguageEN,
				ID:       7,
				FQDN:     "example.com.br",
			},
			expected: "1 00000000000000000000 0 7 example.com.br 0",
		},

		{
			name: "VersionZeroOmitsSuggest",
			query: &Query{
				Version:  0,
				Cookie:   "cookie",
				Language: LanguagePT,
				ID:       7,
				FQDN:     "example.com.br",
				Suggest:  true,
			},
			expected: "0 cookie 1 7 example.com.br",
		},

		{
			name: "ProxiedIP",
			query: &Query{
				ProxiedIP: "192.0.2.1",
				Version:   1,
				Cookie:    "cookie",
				Language:  LanguagePT,
				ID:        7,
				FQDN:      "example.com.br",
			},
			expected: "[192.0.2.1] 1 cookie 1 7 example.com.br 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.query.String())
			require.Equal(t, []byte(tt.expected), tt.query.Bytes())
		})
	}
}

func TestNewQuery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProxiedIP = "192.0.2.1"
	cfg.Suggest = true

	query := runtimex.PanicOnError1(NewQuery(cfg, "cookie", "  example.com.br\n"))
	require.Equal(t, "192.0.2.1", query.ProxiedIP)
	require.Equal(t, DefaultVersion, query.Version)
	require.Equal(t, "cookie", query.Cookie)
	require.Equal(t, LanguagePT, query.Language)
	require.Equal(t, "example.com.br", query.FQDN)
	require.True(t, query.Suggest)

	fields := strings.Fields(query.String())
	require.Len(t, fields, 7)
	require.Equal(t, query.IDString(), fields[4])
	parsed, err := strconv.ParseUint(fields[4], 10, 32)
	require.NoError(t, err)
	require.Equal(t, query.ID, uint32(parsed))
}

func TestNewQueryIDNA(t *testing.T) {
	query, err := NewQuery(DefaultConfig(), "cookie", "ação.com.br")
	require.NoError(t, err)
	require.Equal(t, "ação.com.br", query.FQDN)
}

func TestNewQueryLeavesSyntaxToTheServer(t *testing.T) {
	for _, name := range []string{"foo_bar.com.br", "ab--cd.com.br", "-foo.com.br"} {
		query, err := NewQuery(DefaultConfig(), "cookie", name)
		require.NoError(t, err)
		require.Equal(t, name, query.FQDN)
	}
}

func TestNewQueryInvalidName(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := NewQuery(DefaultConfig(), "cookie", name)
		require.ErrorIs(t, err, ErrInvalidName)
	}
}

func TestQueryClone(t *testing.T) {
	query := &Query{
		ProxiedIP: "192.0.2.1",
		Version:   1,
		Cookie:    "cookie",
		Language:  LanguageEN,
		ID:        1234,
		FQDN:      "example.com.br",
		Suggest:   true,
	}

	clone := query.Clone()

	require.NotSame(t, query, clone)
	require.Equal(t, query, clone)

	clone.Cookie = "other"
	clone.ID = 5678
	require.Equal(t, "cookie", query.Cookie)
	require.Equal(t, uint32(1234), query.ID)
}

func TestQueryReissue(t *testing.T) {
	query := runtimex.PanicOnError1(NewQuery(DefaultConfig(), NoCookie, "example.com.br"))

	// A collision is possible but has negligible probability.
	reissued := query.reissue("newcookie")
	require.Equal(t, "newcookie", reissued.Cookie)
	require.Equal(t, NoCookie, query.Cookie)
	require.Equal(t, query.FQDN, reissued.FQDN)
	require.NotEqual(t, query.ID, reissued.ID)
}
