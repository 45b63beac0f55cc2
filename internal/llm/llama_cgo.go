//go:build llama

package llm

// cgo link directives for the in-process llama engine.
// - rpath of $ORIGIN so libllama.so and libggml*.so are found next to the
//   binary in ./bin at runtime.
// - -L${SRCDIR}/../../bin so the linker finds libllama.so at build time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
