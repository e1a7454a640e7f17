// Package extcrypto provides hashing, HMAC, encoding and UUID filters.
//
// MD5 and SHA-1 are offered for fingerprinting and compatibility with
// existing identifiers only.
package extcrypto

import (
	"context"
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // fingerprinting only
	"crypto/sha1" //nolint:gosec // fingerprinting only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/google/uuid"

	"github.com/sandrolain/gomapper/pkg/ext/extutil"
	"github.com/sandrolain/gomapper/pkg/filters"
	"github.com/sandrolain/gomapper/pkg/types"
)

// All returns every filter of the pack.
func All() []filters.Def {
	return []filters.Def{
		Hash(),
		HMAC(),
		UUID(),
		UUID5(),
		Base64(),
		Unbase64(),
	}
}

// Hash returns the definition for hash[:algorithm], a lowercase hex digest
// of the input text. The algorithm defaults to sha256; md5, sha1, sha384
// and sha512 are also accepted.
func Hash() filters.Def {
	return filters.Def{
		Name:    "hash",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			newHash, err := hasher(extutil.String(args, 0, "sha256"))
			if err != nil {
				return types.Null(), err
			}
			h := newHash()
			h.Write([]byte(in.Text()))
			return types.String(hex.EncodeToString(h.Sum(nil))), nil
		},
	}
}

// HMAC returns the definition for hmac:key[:algorithm].
func HMAC() filters.Def {
	return filters.Def{
		Name:    "hmac",
		MinArgs: 1,
		MaxArgs: 2,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			newHash, err := hasher(extutil.String(args, 1, "sha256"))
			if err != nil {
				return types.Null(), err
			}
			mac := hmac.New(newHash, []byte(args[0].Text()))
			mac.Write([]byte(in.Text()))
			return types.String(hex.EncodeToString(mac.Sum(nil))), nil
		},
	}
}

// UUID returns the definition for uuid. A null input becomes a random
// version 4 UUID; a string input is parsed and returned in canonical form.
func UUID() filters.Def {
	return filters.Simple("uuid", func(in types.Value) (types.Value, error) {
		if in.IsNull() {
			return types.String(uuid.NewString()), nil
		}
		id, err := uuid.Parse(in.Text())
		if err != nil {
			return types.Null(), err
		}
		return types.String(id.String()), nil
	})
}

// UUID5 returns the definition for uuid5[:namespace], a deterministic
// name-based UUID of the input text. The namespace is a UUID or one of
// "dns", "url", "oid", "x500"; it defaults to "url".
func UUID5() filters.Def {
	return filters.Def{
		Name:    "uuid5",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			ns, err := namespace(extutil.String(args, 0, "url"))
			if err != nil {
				return types.Null(), err
			}
			return types.String(uuid.NewSHA1(ns, []byte(in.Text())).String()), nil
		},
	}
}

// Base64 returns the definition for base64[:url].
func Base64() filters.Def {
	return filters.Def{
		Name:    "base64",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			return types.String(encoding(args).EncodeToString([]byte(in.Text()))), nil
		},
	}
}

// Unbase64 returns the definition for unbase64[:url].
func Unbase64() filters.Def {
	return filters.Def{
		Name:    "unbase64",
		MaxArgs: 1,
		Fn: func(_ context.Context, in types.Value, args ...types.Value) (types.Value, error) {
			if in.IsNull() {
				return in, nil
			}
			b, err := encoding(args).DecodeString(in.Text())
			if err != nil {
				return types.Null(), err
			}
			return types.String(string(b)), nil
		},
	}
}

func encoding(args []types.Value) *base64.Encoding {
	if strings.EqualFold(extutil.String(args, 0, ""), "url") {
		return base64.URLEncoding
	}
	return base64.StdEncoding
}

func hasher(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha384":
		return sha512.New384, nil
	case "sha512":
		return sha512.New, nil
	}
	return nil, fmt.Errorf("unsupported algorithm %q; use md5, sha1, sha256, sha384 or sha512", algorithm)
}

func namespace(name string) (uuid.UUID, error) {
	switch strings.ToLower(name) {
	case "dns":
		return uuid.NameSpaceDNS, nil
	case "url":
		return uuid.NameSpaceURL, nil
	case "oid":
		return uuid.NameSpaceOID, nil
	case "x500":
		return uuid.NameSpaceX500, nil
	}
	return uuid.Parse(name)
}
