package rag

import (
	"github.com/BaSui01/ragcore/types"
)

func errUnknownDocType(s string) error {
	return types.ConfigError("unknown document type %q", s)
}

func errUnknownStrategy(s ChunkingStrategy) error {
	return types.ConfigError("unknown chunking strategy %q", s)
}

func errMalformed(docID, format string, args ...any) *types.Error {
	e := types.Errorf(types.ErrMalformedDocument, format, args...)
	e.Message = "document " + docID + ": " + e.Message
	return e
}
