// Package fnametemplate expands the output-filename template and
// sanitizes the pieces that come from untrusted stream metadata.
// Grounded on fc2_live_dl/util.py's sanitize_filename and
// FC2LiveDL.py's _format_outtmpl/_prepare_file/get_format_info.
package fnametemplate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Fields is the set of substitution tokens recognised by a template,
// mirroring FC2LiveDL.get_format_info's finfo dict.
type Fields struct {
	ChannelID   string
	ChannelName string
	Date        string
	Time        string
	Title       string
	Ext         string
}

// NewFields builds the token set for "now", leaving Title/ChannelID/
// ChannelName blank for the caller to fill in from metadata.
func NewFields(now time.Time) Fields {
	return Fields{
		Date: now.Format("2006-01-02"),
		Time: now.Format("150405"),
	}
}

var tokenPattern = regexp.MustCompile(`%\(([a-zA-Z_]+)\)s`)

func (f Fields) asMap() map[string]string {
	return map[string]string{
		"channel_id":   f.ChannelID,
		"channel_name": f.ChannelName,
		"date":         f.Date,
		"time":         f.Time,
		"title":        f.Title,
		"ext":          f.Ext,
	}
}

// Expand substitutes every %(token)s occurrence in tmpl using f's
// fields. Unknown tokens expand to the empty string.
func Expand(tmpl string, f Fields) string {
	m := f.asMap()
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := tokenPattern.FindStringSubmatch(match)[1]
		return m[key]
	})
}

var forbiddenChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

var reservedNames = []string{
	"CON", "PRN", "AUX", "NUL",
	"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
}

// Sanitize makes s safe to use as a path component: each run of
// forbidden characters becomes one underscore, ASCII control characters are
// stripped, leading/trailing whitespace and dots are trimmed, and a
// reserved Windows device name is prefixed with an underscore.
func Sanitize(s string) string {
	s = forbiddenChars.ReplaceAllString(s, "_")
	s = controlChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".")

	upper := strings.ToUpper(s)
	for _, bad := range reservedNames {
		if upper == bad || strings.HasPrefix(upper, bad+".") {
			s = "_" + s
			break
		}
	}

	return s
}

// FormatOutput expands tmpl against f (after sanitizing the metadata
// fields) and, if the result begins with "-", prefixes an underscore so
// it is never mistaken for a command-line flag.
func FormatOutput(tmpl string, f Fields) string {
	f.ChannelID = Sanitize(f.ChannelID)
	f.ChannelName = Sanitize(f.ChannelName)
	f.Title = Sanitize(f.Title)

	out := Expand(tmpl, f)
	if strings.HasPrefix(out, "-") {
		out = "_" + out
	}
	return out
}

// Resolve expands tmpl for extension ext, appending ".N" before N>0 on
// collision, and creates the parent directory of the chosen path.
func Resolve(tmpl string, f Fields, ext string) (string, error) {
	for n := 0; ; n++ {
		extn := ext
		if n > 0 {
			extn = fmt.Sprintf("%d.%s", n, ext)
		}
		f.Ext = extn
		candidate := FormatOutput(tmpl, f)

		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(candidate), 0o755); err != nil {
				return "", fmt.Errorf("fnametemplate: creating parent directory: %w", err)
			}
			return candidate, nil
		}
	}
}
