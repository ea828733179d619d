// Package rpc is the master's local control-plane service: a small gRPC
// surface for listing worker/fork slots and requesting a worker restart,
// served on a loopback Unix socket (--rpc-addr).
//
// Payloads are transported as plain Go structs rather than generated
// protobuf messages: no protoc toolchain runs here, and hand-faking
// protoc-gen-go output would mean forging descriptor bytes that cannot
// be authored correctly by hand. Instead this package registers a JSON
// encoding.Codec with grpc and builds the grpc.ServiceDesc directly, a
// documented extension point for non-protobuf payloads.
package rpc
