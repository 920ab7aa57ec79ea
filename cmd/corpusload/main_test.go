package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLine(t *testing.T) {
	m, err := parseLine("The Sea Beast (1h 55m): A girl stows away on the ship of a legendary monster hunter.")
	if err != nil {
		t.Fatalf("parseLine failed: %v", err)
	}
	if m.Title != "The Sea Beast" {
		t.Errorf("title: got %q", m.Title)
	}
	if m.Description != "A girl stows away on the ship of a legendary monster hunter." {
		t.Errorf("description: got %q", m.Description)
	}
	if m.Content == "" || m.Content == m.Description {
		t.Errorf("content should be the full line, got %q", m.Content)
	}
}

func TestParseLine_WithoutRuntime(t *testing.T) {
	m, err := parseLine("Arrival: A linguist is recruited to communicate with visitors.")
	if err != nil {
		t.Fatalf("parseLine failed: %v", err)
	}
	if m.Title != "Arrival" {
		t.Errorf("title: got %q", m.Title)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	for _, line := range []string{
		"no separator here",
		": description only",
		"Title only: ",
	} {
		if _, err := parseLine(line); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}

func TestParseCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movies.txt")
	content := "First Film (1h): Something happens.\n" +
		"\n" +
		"Second Film (2h): Something else happens.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	movies, err := parseCatalog(path)
	if err != nil {
		t.Fatalf("parseCatalog failed: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("got %d movies, want 2", len(movies))
	}
	// Ids come from line position, so the blank line leaves a gap.
	if movies[0].ID != 1 || movies[1].ID != 3 {
		t.Errorf("ids: got %d and %d, want 1 and 3", movies[0].ID, movies[1].ID)
	}
}
