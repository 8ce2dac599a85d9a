package knol

import (
	"testing"

	"github.com/conorfennell/recall/internal/domain"
)

func TestNormalize(t *testing.T) {
	note := domain.Note{
		Question: "  What is a channel? \r\n",
		Answer:   "A typed conduit.\r\nBlocking by default.",
		Context:  "Go Concurrency",
	}
	expected := "what is a channel?\na typed conduit.\nblocking by default.\ngo concurrency"
	normalized := Normalize(note)

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		note := domain.Note{
			Question: "Q",
			Answer:   "A",
			Context:  "C",
		}
		// Hash for "q\na\nc"
		expectedHash := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		hash := Hash(note)

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		note1 := domain.Note{
			Question: "  what is a goroutine? ",
			Answer:   "A lightweight thread.",
		}
		note2 := domain.Note{
			Question: "What Is A Goroutine?",
			Answer:   "A lightweight thread.",
		}
		if Hash(note1) != Hash(note2) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different notes have different hashes", func(t *testing.T) {
		cases := []struct {
			name   string
			n1, n2 domain.Note
		}{
			{"question", domain.Note{Question: "Note 1"}, domain.Note{Question: "Note 2"}},
			{"answer", domain.Note{Question: "Q", Answer: "1"}, domain.Note{Question: "Q", Answer: "2"}},
			{"field boundary", domain.Note{Question: "a", Answer: "b"}, domain.Note{Question: "a\nb"}},
		}
		for _, c := range cases {
			if Hash(c.n1) == Hash(c.n2) {
				t.Errorf("%s: expected hashes for different notes to be different", c.name)
			}
		}
	})
}
