package helper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/unicode/norm"
)

const (
	blobTimeFormat      = "20060102150405"
	citationTitleLength = 50
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}

// SecureFilename reduces a user supplied filename to ASCII letters, digits,
// '_', '.' and '-'. Path separators become underscores.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	var ascii strings.Builder
	for _, r := range name {
		if r < 128 {
			ascii.WriteRune(r)
		}
	}
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(ascii.String())
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// BlobName builds the locator {user}/{yyyymmddHHMMSS}_{8 char id}_{filename}.
func BlobName(userID, filename string, now time.Time) (string, error) {
	id, err := GenerateUUID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s_%s_%s", userID, now.Format(blobTimeFormat), id[:8], SecureFilename(filename)), nil
}

// CitationBlobName places a fetched citation under {user}/citations/, named
// after the first 50 characters of its title.
func CitationBlobName(userID, title string, now time.Time) (string, error) {
	runes := []rune(title)
	if len(runes) > citationTitleLength {
		runes = runes[:citationTitleLength]
	}
	return BlobName(userID+"/citations", string(runes)+".pdf", now)
}

// TextBlobName is the locator of the extracted text stored beside a blob.
func TextBlobName(blobName string) string {
	return blobName + ".txt"
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// RenderMarkdown converts model output to HTML for chat clients.
func RenderMarkdown(text string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
