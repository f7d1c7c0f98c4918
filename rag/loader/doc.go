// Package loader turns files into rag.Document values ready for indexing.
//
// Each loader sets the document type and the structural hints the chunker
// relies on:
//   - Plain text (.txt): generic
//   - Markdown (.md, .markdown): sop when headings exist, with header hints;
//     optional YAML front matter overrides id and type
//   - CSV (.csv): invoice by default, one pipe table with a table hint
//   - JSON / JSONL (.json, .jsonl): master_data, one document per object
//   - Email (.eml): email, with thread boundary hints
//
// Use LoaderRegistry to route loading by file extension:
//
//	registry := loader.NewLoaderRegistry()
//	docs, err := registry.LoadDir(ctx, "./corpus")
package loader
