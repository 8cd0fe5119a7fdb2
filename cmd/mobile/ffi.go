// Package main builds the LifeLog core as a C shared library for the
// mobile shells (liblifelog.so on Android, LifeLog.framework on iOS):
//
//	go build -buildmode=c-shared -o liblifelog.so ./cmd/mobile
//
// Every function taking or returning *C.char uses UTF-8 JSON. Returned
// strings are owned by the caller and must be released with FreeString.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"unsafe"

	"github.com/kimhsiao/lifelog/backend/internal/bridge"
)

var core = bridge.New()

func goBytes(s *C.char) []byte {
	if s == nil {
		return nil
	}
	return []byte(C.GoString(s))
}

//export Init
// Init opens the core. config is a JSON or YAML document using the
// config file keys; data_dir is required on mobile.
func Init(config *C.char) *C.char {
	return C.CString(string(core.Open(goBytes(config))))
}

//export Call
// Call runs one method, e.g. Call("workouts.save", "{...}") or
// Call("app.lifecycle", "{\"foregrounded\":true}").
func Call(method, payload *C.char) *C.char {
	return C.CString(string(core.Call(C.GoString(method), goBytes(payload))))
}

//export Cleanup
// Cleanup stops the lifecycle trigger and closes the database.
func Cleanup() *C.char {
	return C.CString(string(core.Close()))
}

//export FreeString
// FreeString releases a string returned by this library.
func FreeString(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

// main is required by c-shared builds and never runs.
func main() {}
