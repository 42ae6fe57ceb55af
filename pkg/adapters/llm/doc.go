// Package llm provides LLM client implementations.
//
// The factory creates LLM clients based on provider configuration.
// Supported providers:
//   - Anthropic Claude
//   - OpenAI GPT
//
// The registry holds one constructed client per configured provider so
// requests can select a provider at runtime.
package llm
