package chat

import (
	"strings"

	"github.com/pkg/errors"
)

// Validation failures. Both wrap ErrRejected.
var (
	ErrRejected = errors.New("input rejected")
	ErrBlank    = errors.Wrap(ErrRejected, "input is blank")
	ErrDenied   = errors.Wrap(ErrRejected, "input contains a blocked term")
)

// DefaultDenylist is used when no list is configured.
var DefaultDenylist = []string{
	"暴力",
	"色情",
	"赌博",
	"毒品",
	"反动",
	"恐怖主义",
	"邪教",
	"诈骗",
}

// DefaultRefusal is the canned assistant reply to blocked input.
const DefaultRefusal = "您的输入包含敏感词，请修改后重试。"

// Validator screens input before it is queued.
type Validator struct {
	denylist []string
}

// NewValidator builds a validator over terms. Blank terms are ignored.
func NewValidator(terms []string) *Validator {
	v := &Validator{}
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			v.denylist = append(v.denylist, t)
		}
	}
	return v
}

// Check returns ErrBlank, ErrDenied or nil. Matching is a plain substring test.
func (v *Validator) Check(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlank
	}
	for _, term := range v.denylist {
		if strings.Contains(text, term) {
			return ErrDenied
		}
	}
	return nil
}
