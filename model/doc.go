// Package model defines the provider-agnostic reasoner abstraction used by
// workers, the synthesizer and the follow-up responder.
//
// A reasoner is opaque: given instructions, a conversation and a closed set of
// declared actions it returns either free text or one or more action calls.
// Providers (Anthropic, OpenAI, Gemini) implement Model in sub-packages so
// higher layers stay decoupled from vendor SDKs. MockModel supports scripted
// behaviour in tests.
package model
