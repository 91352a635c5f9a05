// Package archive keeps the original bytes of uploaded spreadsheets.
package archive

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

type Archive interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key builds "<owner>/<yyyy>/<mm>/<dd>/<unix millis>-<file name>" with the
// file name reduced to a safe charset.
func Key(ownerID, fileName string, now time.Time) string {
	name := unsafeChars.ReplaceAllString(path.Base(strings.ReplaceAll(fileName, `\`, "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "upload"
	}
	now = now.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%d-%s", ownerID, now.Year(), now.Month(), now.Day(), now.UnixMilli(), name)
}

// Discard drops everything. Used when archiving is disabled.
type Discard struct{}

func (Discard) Put(context.Context, string, string, []byte) error { return nil }
