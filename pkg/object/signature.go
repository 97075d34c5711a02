package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature identifies a person and a moment in time with its UTC offset.
// It is a value type: the object layer passes it through unmodified.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// IsZero reports whether the signature carries no identity.
func (s Signature) IsZero() bool {
	return s.Name == "" && s.Email == "" && s.When.IsZero()
}

// Format renders the canonical identity line "Name <email> unixsecs ±hhmm".
// The offset is taken from the signature's own location so a signature
// round-trips byte-identically.
func (s Signature) Format() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format("-0700"))
}

// ParseSignature parses the canonical identity line produced by Format.
func ParseSignature(line string) (Signature, error) {
	emailStart := strings.Index(line, " <")
	emailEnd := strings.Index(line, "> ")
	if emailStart < 0 || emailEnd < 0 || emailEnd < emailStart {
		return Signature{}, fmt.Errorf("parse signature: malformed identity %q", line)
	}

	name := line[:emailStart]
	email := line[emailStart+2 : emailEnd]
	rest := strings.Fields(line[emailEnd+2:])
	if len(rest) != 2 {
		return Signature{}, fmt.Errorf("parse signature: malformed timestamp in %q", line)
	}

	secs, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("parse signature: bad timestamp %q: %w", rest[0], err)
	}
	zone, err := parseZoneOffset(rest[1])
	if err != nil {
		return Signature{}, fmt.Errorf("parse signature: %w", err)
	}

	return Signature{
		Name:  name,
		Email: email,
		When:  time.Unix(secs, 0).In(zone),
	}, nil
}

func parseZoneOffset(s string) (*time.Location, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return nil, fmt.Errorf("bad timezone offset %q", s)
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil {
		return nil, fmt.Errorf("bad timezone offset %q: %w", s, err)
	}
	mins, err := strconv.Atoi(s[3:5])
	if err != nil {
		return nil, fmt.Errorf("bad timezone offset %q: %w", s, err)
	}
	offset := (hours*60 + mins) * 60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(s, offset), nil
}

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit. The payload intentionally excludes the signature field itself.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	copyCommit := *c
	copyCommit.Signature = ""
	return MarshalCommit(&copyCommit)
}
