package util

import (
	"fmt"
	"math/rand"
)

// GenerateTag produces a short, human-readable correlation tag for log lines,
// distinct from the sequential request and batch ids.
func GenerateTag() string {
	verbs := []string{
		"firing", "draining", "queueing", "dispatching", "retrying",
		"streaming", "polling", "throttling", "warming", "sampling",
	}
	nouns := []string{
		"volley", "salvo", "burst", "round", "wave",
		"probe", "sweep", "pulse", "surge", "batch",
	}

	verb := verbs[rand.Intn(len(verbs))]
	noun := nouns[rand.Intn(len(nouns))]
	suffix := fmt.Sprintf("%04x", rand.Intn(65536))

	return fmt.Sprintf("%s_%s_%s", verb, noun, suffix)
}
