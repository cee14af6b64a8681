package notify

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Directory maps GitHub authors to chat identities.
//
//	logins:
//	  alice: U012AB3CD
//	emails:
//	  alice@example.com: U012AB3CD
type Directory struct {
	Logins map[string]string `yaml:"logins"`
	Emails map[string]string `yaml:"emails"`
}

// LoadDirectory reads a Directory from a YAML file.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chat identities: %w", err)
	}
	return ParseDirectory(bytes.NewReader(data))
}

// ParseDirectory decodes a Directory from YAML. Unknown keys are rejected.
func ParseDirectory(r io.Reader) (*Directory, error) {
	var raw Directory
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode chat identities: %w", err)
	}

	dir := &Directory{
		Logins: make(map[string]string, len(raw.Logins)),
		Emails: make(map[string]string, len(raw.Emails)),
	}
	for login, id := range raw.Logins {
		if key, id := normalizeKey(login), strings.TrimSpace(id); key != "" && id != "" {
			dir.Logins[key] = id
		}
	}
	for email, id := range raw.Emails {
		if key, id := normalizeKey(email), strings.TrimSpace(id); key != "" && id != "" {
			dir.Emails[key] = id
		}
	}
	return dir, nil
}

// Lookup resolves the chat identity for an author, preferring the login.
func (d *Directory) Lookup(login, email string) (string, bool) {
	if d == nil {
		return "", false
	}
	if id, ok := d.Logins[normalizeKey(login)]; ok && login != "" {
		return id, true
	}
	if id, ok := d.Emails[normalizeKey(email)]; ok && email != "" {
		return id, true
	}
	return "", false
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
