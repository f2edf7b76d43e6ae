// Package llmclient implements the LLM oracle contract (spec.md §6
// "a text→text function"). The teacher reaches its LLM over gRPC to a
// generated proto service (pkg/agent/llm_client.go, pkg/agent/llm_grpc.go);
// that proto package is generated by protoc from a .proto source not
// present in the retrieval pack, so this is instead a small net/http
// JSON client behind the same Generate(ctx, prompt) (string, error)
// interface shape, deadline-bound exactly like the teacher's streaming
// client is context-bound.
package llmclient

import "context"

// Oracle is the text-in/text-out LLM contract the Planner and
// Executor depend on (spec.md §1 "treated as a black-box text-in /
// text-out oracle", §6 "LLM oracle contract").
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
