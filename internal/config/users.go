package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/vftpd/vftpd/auth"
)

// LoadUsers parses a colon-delimited virtual-user directory file:
//
//	name:passwordHashHex:perms:home
//
// one record per line, "#"-prefixed lines ignored. This is the same
// field order as the original easyftpd usertools.py User/load() format;
// the password field here is already a hex digest (see auth.HashPassword)
// rather than plaintext.
func LoadUsers(path string) ([]auth.User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", path, err)
	}
	defer f.Close()

	return parseUsers(f)
}

func parseUsers(r io.Reader) ([]auth.User, error) {
	var users []auth.User

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, ":", 4)
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected name:passwordHash:perms:home, got %q", lineNo, line)
		}

		perms, err := auth.ParsePerms(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		users = append(users, auth.User{
			Name:         fields[0],
			PasswordHash: fields[1],
			Perms:        perms,
			Home:         fields[3],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading user directory: %w", err)
	}

	return users, nil
}

// PopulateTable loads a user directory file straight into an auth.Table.
func PopulateTable(path string, table *auth.Table) error {
	users, err := LoadUsers(path)
	if err != nil {
		return err
	}

	for _, u := range users {
		permStr := permString(u.Perms)
		if err := table.AddUser(u, permStr); err != nil {
			return fmt.Errorf("user %q: %w", u.Name, err)
		}
	}

	return nil
}

func permString(p auth.Perm) string {
	var b strings.Builder
	if p&auth.PermRead != 0 {
		b.WriteByte('r')
	}

	if p&auth.PermWrite != 0 {
		b.WriteByte('w')
	}

	return b.String()
}

// DumpUsers writes the user directory file format back out, anonymous
// first if present, mirroring usertools.py's dump().
func DumpUsers(w io.Writer, users []auth.User) error {
	sorted := make([]auth.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name == auth.AnonymousUser {
			return true
		}

		if sorted[j].Name == auth.AnonymousUser {
			return false
		}

		return sorted[i].Name < sorted[j].Name
	})

	for _, u := range sorted {
		line := fmt.Sprintf("%s:%s:%s:%s\n", u.Name, u.PasswordHash, permString(u.Perms), u.Home)
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}

	return nil
}
