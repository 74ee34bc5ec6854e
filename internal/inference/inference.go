// Package inference defines the contract for structured screening calls
// against a hosted language model, and a Gemini-backed implementation.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/pkg/credentials"
)

// Client issues one screening request with one credential and one model.
// Every error it returns is a *Failure, except a cancelled caller context,
// which is returned as is.
type Client interface {
	// ClassifyBulk screens a group of items in one request. The returned map
	// holds a label for every requested id the model answered; ids the model
	// invented are dropped.
	ClassifyBulk(ctx context.Context, group []items.Item, cred credentials.Credential, model string) (map[int]Label, error)

	// ClassifyOne re-examines a single item with its first-pass label as context.
	ClassifyOne(ctx context.Context, item items.Item, prior Prior, cred credentials.Credential, model string) (Verdict, error)
}

// Label is the raw first-pass answer for one item.
type Label struct {
	ID     ItemID `json:"id"`
	Risk   string `json:"risk_level"`
	Reason string `json:"reason"`
}

// Prior carries the first-pass label into a refinement request.
type Prior struct {
	Risk   string `json:"risk"`
	Reason string `json:"reason"`
}

// Verdict is the raw refinement answer for one item.
type Verdict struct {
	Risk     string `json:"final_risk"`
	Analysis string `json:"detailed_analysis"`
}

// ItemID decodes an item id given as a JSON number or a numeric string.
type ItemID int

// NoID marks a label whose id was missing or not an integer. It matches no
// item, so the item it was meant for is reported as having no result.
const NoID ItemID = -1

// UnmarshalJSON accepts 7, 7.0, and "7". Anything else, including 7.9,
// null, and non-numeric strings, decodes to NoID rather than failing the
// whole response.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	*id = NoID

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}

	if v, err := strconv.Atoi(n.String()); err == nil {
		if v >= 0 {
			*id = ItemID(v)
		}
		return nil
	}

	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return nil
	}
	*id = ItemID(int(f))
	return nil
}

// UnmarshalJSON decodes a label, leaving ID as NoID when the field is absent.
func (l *Label) UnmarshalJSON(data []byte) error {
	type plain Label
	p := plain{ID: NoID}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Label(p)
	return nil
}

// BulkMessage renders the user message for a bulk request, one item per line.
func BulkMessage(group []items.Item) string {
	var sb strings.Builder
	sb.WriteString("Screen every listing below strictly. When in doubt, answer Medium.\n")
	for _, it := range group {
		fmt.Fprintf(&sb, "ID:%d 商品名:%s\n", it.ID, it.Text)
	}
	return sb.String()
}

// RefineMessage renders the user message for a single-item refinement request.
func RefineMessage(item items.Item, prior Prior) string {
	return fmt.Sprintf(
		"Give a detailed second opinion on this listing.\n商品名: %s\nFirst-pass risk: %s\nFirst-pass reason: %s\n",
		item.Text, prior.Risk, prior.Reason,
	)
}

// collect keeps the labels whose ids were requested. The first label wins
// when the model repeats an id. NoID labels are never requested.
func collect(group []items.Item, labels []Label) map[int]Label {
	requested := make(map[int]struct{}, len(group))
	for _, it := range group {
		requested[it.ID] = struct{}{}
	}

	out := make(map[int]Label, len(labels))
	for _, l := range labels {
		id := int(l.ID)
		if _, ok := requested[id]; !ok {
			continue
		}
		if _, dup := out[id]; dup {
			continue
		}
		out[id] = l
	}
	return out
}
