package sgxnet

// WriteBufferSize is the capacity of a TcpStream's in-enclave write FIFO.
// User writes copy into this buffer and return immediately; the write state
// machine drains it to the provider in the background.
const WriteBufferSize = 16 * 1024

// ReadBufferSize is the size of the buffer a TcpStream loans to the
// provider for each read submission.
const ReadBufferSize = 64 * 1024

// FakeTTL is returned by TcpStream.TTL, which cannot honor a real TTL
// value because stream sockets are proxied entirely through the provider.
const FakeTTL = 64

// DefaultEventCapacity is the capacity NewEvents uses when it is given a
// capacity of zero or less.
const DefaultEventCapacity = 128
