// Package sgxnet reshapes a completion-based asynchronous I/O primitive
// into the readiness interface expected by event-driven network code.
//
// It targets an environment (e.g. an SGX enclave) that cannot poll file
// descriptors directly: the only I/O primitive is an asynchronous usercall
// provider that later invokes a completion callback on a helper thread.
// Sources (TcpListener, TcpStream) translate these one-shot completions
// into edge-triggered readiness events delivered through a Registry/Poll
// pair modeled on the standard mio-style registry contract: register a
// source with a token and interest, block in Poll, and drain the Events
// it fills.
//
// Only edge-triggered delivery is supported; level-triggered and one-shot
// polling modes are rejected at registration. UDP, Unix-domain sockets,
// and kernel-level polling are out of scope.
package sgxnet
