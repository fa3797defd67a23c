// Package stream splits a generated token stream into prose and a
// trailing structured block, emitting progressively complete snapshots.
package stream

import (
	"encoding/json"
	"strings"
)

// Separator marks where the model switches from prose to the JSON
// block. The prompt asks for it on its own line, but the decoder only
// needs it to appear somewhere in a fragment.
const Separator = "---"

type Topic struct {
	Topic  string `json:"topic"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type Question struct {
	Question string `json:"question"`
	Type     string `json:"type"`
	Reason   string `json:"reason"`
}

// Snapshot is one emitted state. Later snapshots for the same call
// supersede earlier ones.
type Snapshot struct {
	Text      string     `json:"text"`
	Topics    []Topic    `json:"topics,omitempty"`
	Questions []Question `json:"questions,omitempty"`
}

type Sink func(Snapshot)

// Wire shapes the provider was asked to produce.
type topicWire struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

type questionWire struct {
	Question string `json:"question"`
	Type     string `json:"type"`
	Detail   string `json:"detail"`
}

type structuredWire struct {
	Topics    []topicWire    `json:"topics"`
	Questions []questionWire `json:"questions"`
}

// Decoder consumes the fragments of a single provider call. Not safe
// for concurrent use; one decoder per call, discarded afterwards.
type Decoder struct {
	sink Sink

	prose      strings.Builder
	raw        strings.Builder
	structured bool
	text       string // finalized prose once the separator is seen

	topics        []Topic
	seenTopics    map[string]bool
	questions     []Question
	seenQuestions map[string]bool
}

func NewDecoder(sink Sink) *Decoder {
	return &Decoder{
		sink:          sink,
		seenTopics:    make(map[string]bool),
		seenQuestions: make(map[string]bool),
	}
}

// Feed appends one fragment. In the prose phase every fragment emits a
// snapshot; after the separator, snapshots only fire when the growing
// buffer parses as a complete JSON object.
func (d *Decoder) Feed(fragment string) {
	if d.structured {
		d.feedStructured(fragment)
		return
	}

	if i := strings.Index(fragment, Separator); i >= 0 {
		d.prose.WriteString(fragment[:i])
		d.text = strings.TrimSpace(d.prose.String())
		d.structured = true
		d.sink(Snapshot{Text: d.text})

		if rest := fragment[i+len(Separator):]; rest != "" {
			d.feedStructured(rest)
		}
		return
	}

	d.prose.WriteString(fragment)
	d.sink(Snapshot{Text: strings.TrimSpace(d.prose.String())})
}

func (d *Decoder) feedStructured(fragment string) {
	d.raw.WriteString(fragment)

	buf := strings.TrimSpace(d.raw.String())

	// Don't bother parsing until the buffer at least looks like a whole
	// object; the payload usually arrives in many small pieces.
	if !strings.Contains(buf, "}") {
		return
	}
	if len(buf) < 2 || buf[0] != '{' || buf[len(buf)-1] != '}' {
		return
	}

	var payload structuredWire
	if err := json.Unmarshal([]byte(buf), &payload); err != nil {
		// Incomplete JSON is expected mid-stream; keep accumulating.
		return
	}

	for _, t := range payload.Topics {
		if t.Name == "" || d.seenTopics[t.Name] {
			continue
		}
		d.seenTopics[t.Name] = true
		d.topics = append(d.topics, Topic{Topic: t.Name, Type: t.Type, Reason: t.Detail})
	}

	for _, q := range payload.Questions {
		if q.Question == "" || d.seenQuestions[q.Question] {
			continue
		}
		d.seenQuestions[q.Question] = true
		d.questions = append(d.questions, Question{Question: q.Question, Type: q.Type, Reason: q.Detail})
	}

	d.sink(d.Snapshot())
}

// Snapshot returns the current accumulated state.
func (d *Decoder) Snapshot() Snapshot {
	text := d.text
	if !d.structured {
		text = strings.TrimSpace(d.prose.String())
	}
	return Snapshot{
		Text:      text,
		Topics:    d.topics,
		Questions: d.questions,
	}
}
