package rag

import (
	"fmt"
	"strings"
)

const (
	noDocumentContext = "No relevant context found."
	noGraphContext    = "No graph paths found."
)

// BuildContext 把排序后的块渲染为带来源编号的上下文。maxChars<=0 表示不限制长度。
func BuildContext(hits []SearchHit, maxChars int) string {
	if len(hits) == 0 {
		return noDocumentContext
	}
	var sb strings.Builder
	for i, h := range hits {
		doc := h.DocumentID
		if doc == "" {
			doc = "unknown"
		}
		part := fmt.Sprintf("[Source %d] (relevance: %.2f, doc: %s)\n%s\n", i+1, h.Score, doc, h.Content)
		if i > 0 {
			part = "\n---\n" + part
		}
		if maxChars > 0 && sb.Len()+len(part) > maxChars && i > 0 {
			break
		}
		sb.WriteString(part)
	}
	return sb.String()
}

// BuildGraphContext 渲染前 limit 条路径，形如 A → rel → B
func BuildGraphContext(result *TraversalResult, limit int) string {
	if result == nil || len(result.Paths) == 0 {
		return noGraphContext
	}
	lines := []string{"=== Knowledge Graph Context ===", ""}
	for i, p := range result.Paths {
		if limit > 0 && i >= limit {
			break
		}
		lines = append(lines, fmt.Sprintf("Path %d: %s", i+1, DescribePath(p, result.Entities)))
	}
	return strings.Join(lines, "\n")
}

// DescribePath 单条路径的文字描述；反向边以 ← 标注
func DescribePath(p TraversalPath, entities map[string]Entity) string {
	name := func(id string) string {
		if e, ok := entities[id]; ok {
			return e.DisplayName()
		}
		return id
	}
	parts := []string{name(p.Seed)}
	for _, s := range p.Steps {
		arrow := "→"
		if s.Reverse {
			arrow = "←"
		}
		parts = append(parts, s.Relationship.Type, name(s.EntityID))
		parts[len(parts)-2] = arrow + " " + parts[len(parts)-2] + " " + arrow
	}
	return strings.Join(parts, " ")
}

// BuildAnswerPrompt 合并文档证据与图证据，生成回答提示
func BuildAnswerPrompt(query, documentContext, graphContext string) string {
	var sb strings.Builder
	sb.WriteString(`You are a business document analysis assistant.
Answer the question based on the provided context. When knowledge graph paths are given,
use them to explain how entities and events are connected.
If the context does not contain enough information to answer the question, say so honestly.
Always cite which sources you used.

`)
	if graphContext != "" {
		sb.WriteString(graphContext)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Context:\n")
	if documentContext == "" {
		documentContext = noDocumentContext
	}
	sb.WriteString(documentContext)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPlease answer the question based on the context provided.")
	return sb.String()
}
