package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kaptinlin/jsonrepair"
	yaml "gopkg.in/yaml.v3"
)

var (
	// ErrNoContent is returned when a reply holds nothing to decode.
	ErrNoContent = errors.New("structured: reply has no content")

	fence    = regexp.MustCompile("(?s)```([A-Za-z0-9_-]*)[ \t]*\r?\n(.*?)```")
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Block is a fenced code block found in a reply.
type Block struct {
	Lang string
	Body string
}

// ExtractBlock picks the payload of an LLM reply. A ```yaml or ```json block
// wins over an untagged one; without fences the whole reply is used and its
// format is guessed from the first character.
func ExtractBlock(reply string) (Block, bool) {
	var untagged *Block
	for _, m := range fence.FindAllStringSubmatch(reply, -1) {
		lang := strings.ToLower(m[1])
		body := strings.TrimSpace(m[2])
		switch lang {
		case "yaml", "yml":
			return Block{Lang: "yaml", Body: body}, true
		case "json":
			return Block{Lang: "json", Body: body}, true
		}
		if untagged == nil {
			untagged = &Block{Lang: guessLang(body), Body: body}
		}
	}
	if untagged != nil {
		return *untagged, true
	}

	body := strings.TrimSpace(reply)
	if body == "" {
		return Block{}, false
	}
	return Block{Lang: guessLang(body), Body: body}, true
}

func guessLang(body string) string {
	if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
		return "json"
	}
	return "yaml"
}

// Parse decodes an LLM reply into T. JSON payloads that fail to decode are
// repaired once before giving up. Struct results are checked against their
// validate tags.
func Parse[T any](reply string) (T, error) {
	var out T
	block, ok := ExtractBlock(reply)
	if !ok {
		return out, ErrNoContent
	}

	switch block.Lang {
	case "json":
		if err := decodeJSON(block.Body, &out); err != nil {
			return out, err
		}
	default:
		if err := yaml.Unmarshal([]byte(block.Body), &out); err != nil {
			return out, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if err := Validate(out); err != nil {
		return out, err
	}
	return out, nil
}

func decodeJSON(body string, out any) error {
	err := json.Unmarshal([]byte(body), out)
	if err == nil {
		return nil
	}
	repaired, rerr := jsonrepair.JSONRepair(body)
	if rerr != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("decode repaired json: %w", err)
	}
	return nil
}

// Validate runs the validate tags of v when it is a struct or a pointer to one.
// Other values pass unchanged.
func Validate(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(rv.Interface()); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
