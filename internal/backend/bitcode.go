package backend

import _ "embed"

// libjitBitcode is the CPU backend's kernel bitcode, generated at build
// time by the (out-of-scope) LLVM code generation step and linked in as an
// immutable byte slice. No runtime mutation is ever performed on it.
//
//go:embed assets/libjit.bc
var libjitBitcode []byte
