package descriptor

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ok300/lwk/confidential"
)

// maxMultiKeys is the largest number of keys of a multi fragment.
const maxMultiKeys = 20

// Parse parses a confidential descriptor of the form
// ct(KEYSOURCE,INNER)[#checksum].
func Parse(s string) (*Descriptor, error) {
	body, err := splitChecksum(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}

	name, args, err := parseCall(body)
	if err != nil {
		return nil, err
	}
	if name != "ct" || len(args) != 2 {
		return nil, newInvalid("expected ct(key,descriptor)")
	}

	keySource, err := parseKeySource(args[0])
	if err != nil {
		return nil, err
	}

	template, err := parseTemplate(args[1])
	if err != nil {
		return nil, err
	}

	return &Descriptor{
		keySource: keySource,
		template:  template,
		body:      body,
	}, nil
}

func parseKeySource(s string) (KeySource, error) {
	if strings.HasPrefix(s, "slip77(") {
		name, args, err := parseCall(s)
		if err != nil {
			return nil, err
		}
		if name != "slip77" || len(args) != 1 {
			return nil, newInvalid("bad slip77 key %q", s)
		}

		key, err := confidential.NewSlip77KeyFromHex(args[0])
		if err != nil {
			return nil, newInvalid("%v", err)
		}

		return Slip77{Key: key}, nil
	}

	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, newInvalid("unsupported blinding key %q", s)
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)

	return ViewKey{PrivKey: priv, raw: s}, nil
}

func parseTemplate(s string) (ScriptTemplate, error) {
	name, args, err := parseCall(s)
	if err != nil {
		return nil, err
	}

	switch name {
	case "elwpkh":
		key, err := singleKey(args)
		if err != nil {
			return nil, err
		}

		return &Wpkh{Key: key}, nil

	case "elsh":
		if len(args) != 1 {
			return nil, newInvalid("elsh takes one argument")
		}

		inner, innerArgs, err := parseCall(args[0])
		if err != nil {
			return nil, err
		}
		if inner != "wpkh" {
			return nil, newInvalid("unsupported elsh(%s)", inner)
		}

		key, err := singleKey(innerArgs)
		if err != nil {
			return nil, err
		}

		return &ShWpkh{Key: key}, nil

	case "eltr":
		if len(args) < 1 || len(args) > 2 {
			return nil, newInvalid("eltr takes one or two arguments")
		}

		key, err := parseKey(args[0])
		if err != nil {
			return nil, err
		}

		tr := &Tr{Key: key}
		if len(args) == 2 {
			tr.Tree = args[1]
		}

		return tr, nil

	case "elwsh":
		if len(args) != 1 {
			return nil, newInvalid("elwsh takes one argument")
		}

		return parseWsh(args[0])
	}

	return nil, newInvalid("unsupported descriptor %q", name)
}

func singleKey(args []string) (*Key, error) {
	if len(args) != 1 {
		return nil, newInvalid("expected a single key")
	}

	return parseKey(args[0])
}

// parseWsh parses the policy inside elwsh(). Flat multi and sortedmulti
// fragments become WshMulti, anything else WshMiniscript.
func parseWsh(s string) (ScriptTemplate, error) {
	name, args, err := parseCall(s)
	if err != nil {
		return nil, err
	}

	if name == "multi" || name == "sortedmulti" {
		multi, err := parseMulti(args, name == "sortedmulti")
		if err != nil {
			return nil, err
		}

		return multi, nil
	}

	keys, err := collectKeys(args)
	if err != nil {
		return nil, err
	}

	return &WshMiniscript{Expr: s, Keys: keys}, nil
}

func parseMulti(args []string, sorted bool) (*WshMulti, error) {
	if len(args) < 2 {
		return nil, newInvalid("multi needs a threshold and keys")
	}

	k, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, newInvalid("bad threshold %q", args[0])
	}

	n := len(args) - 1
	if n > maxMultiKeys {
		return nil, newInvalid("too many keys: %d", n)
	}
	if k < 1 || k > n {
		return nil, ErrInvalidThreshold
	}

	multi := &WshMulti{Threshold: k, Sorted: sorted}
	for _, arg := range args[1:] {
		key, err := parseKey(arg)
		if err != nil {
			return nil, err
		}
		multi.Keys = append(multi.Keys, key)
	}

	return multi, nil
}

// collectKeys walks a miniscript expression and parses every leaf that
// looks like a key.
func collectKeys(args []string) ([]*Key, error) {
	var keys []*Key

	for _, arg := range args {
		if strings.Contains(arg, "(") {
			_, inner, err := parseCall(arg)
			if err != nil {
				return nil, err
			}

			sub, err := collectKeys(inner)
			if err != nil {
				return nil, err
			}
			keys = append(keys, sub...)

			continue
		}

		if !looksLikeKey(arg) {
			continue
		}

		key, err := parseKey(arg)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func looksLikeKey(s string) bool {
	if strings.HasPrefix(s, "[") {
		return true
	}
	for _, prefix := range []string{"xpub", "tpub"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return len(s) == 2*btcec.PubKeyBytesLenCompressed
}

// parseCall splits name(arg,arg,...) into its name and top level arguments.
func parseCall(s string) (string, []string, error) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", nil, newInvalid("expected a fragment, got %q", s)
	}

	args, err := splitArgs(s[open+1 : len(s)-1])
	if err != nil {
		return "", nil, err
	}

	return s[:open], args, nil
}

// splitArgs splits on commas that are not nested in any bracket.
func splitArgs(s string) ([]string, error) {
	var (
		args  []string
		depth int
		start int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++

		case ')', ']', '}', '>':
			depth--
			if depth < 0 {
				return nil, newInvalid("unbalanced brackets")
			}

		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, newInvalid("unbalanced brackets")
	}

	args = append(args, s[start:])
	for _, arg := range args {
		if arg == "" {
			return nil, newInvalid("empty argument")
		}
	}

	return args, nil
}
