// Package providers implements HTTP adapters for upstream model APIs.
//
// All supported upstreams speak the OpenAI-compatible chat completions
// protocol, so a single Adapter parameterized by a ProviderDescriptor covers
// every configured provider. Errors coming back from an upstream are
// classified purely from transport structure (HTTP status, network failure
// class); response message text is never inspected.
package providers
