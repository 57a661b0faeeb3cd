// Package deck packages generated cards as an Anki deck (.apkg).
package deck

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DeckTitlePrefix is prepended to every deck name shown in Anki.
	DeckTitlePrefix = "FlashDeck - "
	// noteModelID is fixed so re-imported decks share one note type.
	noteModelID = 1607392319
	fieldSep    = "\x1f"
)

// ErrNoCards is returned when there is nothing to package.
var ErrNoCards = errors.New("no cards to package")

// Builder packages cards into a deck file and returns its path.
type Builder interface {
	Build(ctx context.Context, deckID string, cards []models.Card, name string) (string, error)
}

// AnkiBuilder writes .apkg files into OutputDir.
type AnkiBuilder struct {
	OutputDir string
	Logger    *slog.Logger
	now       func() time.Time
}

func NewAnkiBuilder(outputDir string, logger *slog.Logger) *AnkiBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnkiBuilder{OutputDir: outputDir, Logger: logger, now: time.Now}
}

// Build writes <deckID>/flashdeck_<name>.apkg under OutputDir with one
// Question/Answer note per card. Without a deck ID a fresh directory is used.
func (b *AnkiBuilder) Build(ctx context.Context, deckID string, cards []models.Card, name string) (string, error) {
	if len(cards) == 0 {
		return "", ErrNoCards
	}
	logCtx := b.Logger.With("deckId", deckID, "deckName", name, "cardCount", len(cards))

	tempDir, err := os.MkdirTemp("", "flashdeck-apkg-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	collectionPath := filepath.Join(tempDir, "collection.anki2")
	if err := b.writeCollection(ctx, collectionPath, cards, DeckTitlePrefix+name); err != nil {
		logCtx.Error("Failed to write Anki collection", "error", err)
		return "", err
	}

	deckDir, err := b.deckDir(deckID)
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(deckDir, PackageFileName(name))
	if err := writePackage(collectionPath, outPath); err != nil {
		logCtx.Error("Failed to write deck package", "error", err, "path", outPath)
		return "", err
	}
	logCtx.Info("Deck package written.", "path", outPath)
	return outPath, nil
}

func (b *AnkiBuilder) deckDir(deckID string) (string, error) {
	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir %s: %w", b.OutputDir, err)
	}
	dirName := SanitizeFileName(deckID)
	if dirName == "" {
		dir, err := os.MkdirTemp(b.OutputDir, "deck-*")
		if err != nil {
			return "", fmt.Errorf("failed to create deck dir: %w", err)
		}
		return dir, nil
	}
	dir := filepath.Join(b.OutputDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create deck dir %s: %w", dir, err)
	}
	return dir, nil
}

// PackageFileName is the file name used for a deck called name.
func PackageFileName(name string) string {
	sanitized := SanitizeFileName(name)
	if sanitized == "" {
		sanitized = "generated"
	}
	return "flashdeck_" + sanitized + ".apkg"
}

var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeFileName converts a deck name into a safe file or object name component.
func SanitizeFileName(name string) string {
	lower := strings.ToLower(name)
	sanitized := nonAlphanumericRegex.ReplaceAllString(lower, "_")
	sanitized = strings.Trim(sanitized, "_")

	const maxLength = 100
	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength]
		sanitized = strings.Trim(sanitized, "_")
	}
	return sanitized
}

func (b *AnkiBuilder) writeCollection(ctx context.Context, path string, cards []models.Card, title string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open collection: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin collection transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(collectionSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create collection schema: %w", err)
		}
	}

	now := b.now()
	deckID := rand.Int64N(1<<31-1<<30) + 1<<30
	col, err := newCollectionRow(now, deckID, title)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags) VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')`,
		col.crt, col.mod, col.mod, col.conf, col.model, col.decks, col.dconf,
	); err != nil {
		return fmt.Errorf("failed to insert collection row: %w", err)
	}

	baseID := now.UnixMilli()
	for i, c := range cards {
		id := baseID + int64(i)
		question := strings.TrimSpace(c.Question)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data) VALUES (?, ?, ?, ?, -1, ?, ?, ?, ?, 0, '')`,
			id, uuid.NewString(), noteModelID, now.Unix(), noteTags(c.Topic), question+fieldSep+c.Answer, question, fieldChecksum(question),
		); err != nil {
			return fmt.Errorf("failed to insert note %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data) VALUES (?, ?, ?, 0, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')`,
			id, id, deckID, now.Unix(), i+1,
		); err != nil {
			return fmt.Errorf("failed to insert card %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection: %w", err)
	}
	return nil
}

// noteTags renders a topic as an Anki tag list, which is space separated and space padded.
func noteTags(topic string) string {
	topic = strings.Join(strings.Fields(topic), "_")
	if topic == "" {
		return ""
	}
	return " " + topic + " "
}

// fieldChecksum is the first 32 bits of the SHA-1 of the sort field, as Anki computes it.
func fieldChecksum(field string) int64 {
	sum := sha1.Sum([]byte(field))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}

func writePackage(collectionPath, outPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".apkg-*")
	if err != nil {
		return fmt.Errorf("failed to create package file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	if err := addZipFile(zw, "collection.anki2", collectionPath); err != nil {
		tmp.Close()
		return err
	}
	media, err := zw.Create("media")
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to add media manifest: %w", err)
	}
	if _, err := io.WriteString(media, "{}"); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write media manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to finalize package: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close package file: %w", err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return fmt.Errorf("failed to move package into place: %w", err)
	}
	return nil
}

func addZipFile(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer src.Close()
	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to package: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy %s into package: %w", name, err)
	}
	return nil
}

type collectionRow struct {
	crt   int64
	mod   int64
	conf  string
	model string
	decks string
	dconf string
}

func newCollectionRow(now time.Time, deckID int64, title string) (collectionRow, error) {
	mod := now.UnixMilli()
	conf := map[string]any{
		"activeDecks": []int64{1}, "curDeck": 1, "newSpread": 0, "collapseTime": 1200,
		"timeLim": 0, "estTimes": true, "dueCounts": true, "curModel": nil,
		"nextPos": 1, "sortType": "noteFld", "sortBackwards": false, "addToCur": true,
	}
	noteModel := map[string]any{
		"id": noteModelID, "name": "Simple Model", "type": 0, "mod": now.Unix(), "usn": -1,
		"sortf": 0, "did": deckID, "tags": []string{}, "vers": []int{},
		"flds": []map[string]any{
			{"name": "Question", "ord": 0, "sticky": false, "rtl": false, "font": "Arial", "size": 20, "media": []string{}},
			{"name": "Answer", "ord": 1, "sticky": false, "rtl": false, "font": "Arial", "size": 20, "media": []string{}},
		},
		"tmpls": []map[string]any{{
			"name": "Card 1", "ord": 0, "did": nil, "bqfmt": "", "bafmt": "",
			"qfmt": "{{Question}}",
			"afmt": `{{FrontSide}}<hr id="answer">{{Answer}}`,
		}},
		"css":       ".card {\n font-family: arial;\n font-size: 20px;\n text-align: center;\n color: black;\n background-color: white;\n}\n",
		"latexPre":  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n",
		"latexPost": "\\end{document}",
		"req":       []any{[]any{0, "any", []int{0}}},
	}
	deckEntry := func(id int64, name string) map[string]any {
		return map[string]any{
			"id": id, "name": name, "desc": "", "mod": now.Unix(), "usn": -1, "conf": 1, "dyn": 0,
			"collapsed": false, "browserCollapsed": false, "extendNew": 0, "extendRev": 0,
			"newToday": []int{0, 0}, "revToday": []int{0, 0}, "lrnToday": []int{0, 0}, "timeToday": []int{0, 0},
		}
	}
	decks := map[string]any{"1": deckEntry(1, "Default")}
	decks[fmt.Sprint(deckID)] = deckEntry(deckID, title)
	dconf := map[string]any{
		"1": map[string]any{
			"id": 1, "name": "Default", "mod": 0, "usn": 0, "maxTaken": 60, "autoplay": true,
			"timer": 0, "replayq": true, "dyn": false,
			"new": map[string]any{
				"delays": []int{1, 10}, "ints": []int{1, 4, 7}, "initialFactor": 2500,
				"order": 1, "perDay": 20, "bury": true, "separate": true,
			},
			"rev": map[string]any{
				"perDay": 100, "ease4": 1.3, "fuzz": 0.05, "ivlFct": 1, "maxIvl": 36500,
				"minSpace": 1, "bury": true,
			},
			"lapse": map[string]any{
				"delays": []int{10}, "mult": 0, "minInt": 1, "leechFails": 8, "leechAction": 0,
			},
		},
	}

	var row collectionRow
	row.crt = now.Unix()
	row.mod = mod
	for _, f := range []struct {
		dst *string
		v   any
	}{
		{&row.conf, conf},
		{&row.model, map[string]any{fmt.Sprint(noteModelID): noteModel}},
		{&row.decks, decks},
		{&row.dconf, dconf},
	} {
		data, err := json.Marshal(f.v)
		if err != nil {
			return collectionRow{}, fmt.Errorf("failed to encode collection settings: %w", err)
		}
		*f.dst = string(data)
	}
	return row, nil
}

const collectionSchema = `
CREATE TABLE col (
	id integer primary key, crt integer not null, mod integer not null, scm integer not null,
	ver integer not null, dty integer not null, usn integer not null, ls integer not null,
	conf text not null, models text not null, decks text not null, dconf text not null, tags text not null
);
CREATE TABLE notes (
	id integer primary key, guid text not null, mid integer not null, mod integer not null,
	usn integer not null, tags text not null, flds text not null, sfld integer not null,
	csum integer not null, flags integer not null, data text not null
);
CREATE TABLE cards (
	id integer primary key, nid integer not null, did integer not null, ord integer not null,
	mod integer not null, usn integer not null, type integer not null, queue integer not null,
	due integer not null, ivl integer not null, factor integer not null, reps integer not null,
	lapses integer not null, left integer not null, odue integer not null, odid integer not null,
	flags integer not null, data text not null
);
CREATE TABLE revlog (
	id integer primary key, cid integer not null, usn integer not null, ivl integer not null,
	lastIvl integer not null, factor integer not null, time integer not null, type integer not null
);
CREATE TABLE graves (usn integer not null, oid integer not null, type integer not null);
CREATE INDEX ix_notes_usn on notes (usn);
CREATE INDEX ix_cards_usn on cards (usn);
CREATE INDEX ix_revlog_usn on revlog (usn);
CREATE INDEX ix_cards_nid on cards (nid);
CREATE INDEX ix_cards_sched on cards (did, queue, due);
CREATE INDEX ix_revlog_cid on revlog (cid);
CREATE INDEX ix_notes_csum on notes (csum);
`
