// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bassosimone/isavail"
	"github.com/stretchr/testify/require"
)

func TestUsageWithoutFQDN(t *testing.T) {
	cmd, _ := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "--cookie-file")
}

func TestConfigFromFlags(t *testing.T) {
	cmd, v := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"-l", "en",
		"-s", "192.0.2.1",
		"-p", "4343",
		"-a", "198.51.100.1",
		"-S",
		"--max-retries", "5",
		"--retry-timeout", "2s",
	}))

	cfg, err := configFromViper(v)
	require.NoError(t, err)
	require.Equal(t, isavail.LanguageEN, cfg.Language)
	require.Equal(t, "192.0.2.1", cfg.Server)
	require.Equal(t, 4343, cfg.Port)
	require.Equal(t, "198.51.100.1", cfg.ProxiedIP)
	require.True(t, cfg.Suggest)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, 2*time.Second, cfg.RetryTimeout)
}

func TestConfigFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isavail.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: 192.0.2.7\nport: 4444\nlang: EN\n"), 0o600))
	t.Setenv("ISAVAIL_PORT", "5555")

	cmd, v := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
	require.NoError(t, readConfigFile(v, path))

	cfg, err := configFromViper(v)
	require.NoError(t, err)
	require.Equal(t, "192.0.2.7", cfg.Server)
	require.Equal(t, 5555, cfg.Port)
	require.Equal(t, isavail.LanguageEN, cfg.Language)
}

func TestConfigInvalidLanguage(t *testing.T) {
	cmd, v := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"-l", "FR"}))
	_, err := configFromViper(v)
	require.ErrorIs(t, err, isavail.ErrInvalidConfig)
}

func TestRunAgainstFakeRegistry(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	go func() {
		buffer := make([]byte, 1024)
		for {
			count, addr, err := conn.ReadFrom(buffer)
			if err != nil {
				return
			}
			fields := strings.Fields(string(buffer[:count]))
			var reply string
			if fields[1] == isavail.NoCookie {
				reply = "CK freshcookie " + fields[3] + "\n"
			} else {
				reply = "ST 3 " + fields[3] + "\n" + fields[4] + "\nnot available\nfoo|bar\n"
			}
			_, _ = conn.WriteTo([]byte(reply), addr)
		}
	}()

	cookieFile := filepath.Join(t.TempDir(), "cookie.txt")
	cmd, _ := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"-s", "127.0.0.1",
		"-p", strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port),
		"-c", cookieFile,
		"-S",
		"example.com.br",
	})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "Response Status: 3 (Unavailable)")
	require.Contains(t, out.String(), "Suggestions: foo.br bar.br")

	cookie, err := os.ReadFile(cookieFile)
	require.NoError(t, err)
	require.Equal(t, "freshcookie", string(cookie))
}

func TestRunNoResponse(t *testing.T) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	cookieFile := filepath.Join(t.TempDir(), "cookie.txt")
	require.NoError(t, os.WriteFile(cookieFile, []byte("cookie\n"), 0o600))

	cmd, _ := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"-s", "127.0.0.1",
		"-p", strconv.Itoa(conn.LocalAddr().(*net.UDPAddr).Port),
		"-c", cookieFile,
		"--max-retries", "1",
		"--retry-timeout", "10ms",
		"example.com.br",
	})

	require.ErrorIs(t, cmd.Execute(), errNoResponse)
	require.Equal(t, "No response\n", out.String())
}
