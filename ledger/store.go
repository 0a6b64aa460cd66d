package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/amonks/swarmboard/internal/filelock"
	"github.com/amonks/swarmboard/project"
)

// Store provides locked access to a project's task documents.
type Store struct {
	project project.Project
}

// Open returns a store for the project's task documents.
func Open(p project.Project) *Store {
	return &Store{project: p}
}

// Project returns the project the store reads.
func (s *Store) Project() project.Project {
	return s.project
}

// Read parses a terminal's document. A missing document is not an error: it
// yields a Document with Exists false and no tasks.
func (s *Store) Read(terminal int) (Document, error) {
	if err := ValidateTerminal(terminal); err != nil {
		return Document{}, err
	}
	doc := Document{
		Terminal: terminal,
		Name:     project.DocumentName(terminal),
		Path:     s.project.DocumentPath(terminal),
	}
	data, err := os.ReadFile(doc.Path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", doc.Name, err)
	}
	doc.Exists = true
	doc.Text = string(data)
	doc.Tasks = Parse(doc.Name, doc.Text)
	return doc, nil
}

// Scan reads every terminal's document. Read failures are joined into the
// returned error; the Scan still holds every document that could be read.
func (s *Store) Scan(ctx context.Context) (Scan, error) {
	var scan Scan
	var errs error
	for _, terminal := range Terminals() {
		if err := ctx.Err(); err != nil {
			return scan, err
		}
		doc, err := s.Read(terminal)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		scan.Documents = append(scan.Documents, doc)
	}
	return scan, errs
}

// MutateFunc computes a document's new text. Returning changed false leaves
// the file untouched.
type MutateFunc func(doc Document) (text string, changed bool, err error)

// Mutate runs a read-modify-write of a terminal's document under the
// document's lock and returns the document as it stands afterwards.
func (s *Store) Mutate(terminal int, fn MutateFunc) (Document, error) {
	if err := ValidateTerminal(terminal); err != nil {
		return Document{}, err
	}
	path := s.project.DocumentPath(terminal)
	var result Document
	err := filelock.With(path, func() error {
		doc, err := s.Read(terminal)
		if err != nil {
			return err
		}
		text, changed, err := fn(doc)
		if err != nil {
			return err
		}
		if !changed {
			result = doc
			return nil
		}
		if err := filelock.WriteFile(path, []byte(text)); err != nil {
			return fmt.Errorf("write %s: %w", doc.Name, err)
		}
		doc.Exists = true
		doc.Text = text
		doc.Tasks = Parse(doc.Name, text)
		result = doc
		return nil
	})
	return result, err
}
