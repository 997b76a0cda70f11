// Command libgtpengine builds the engine as a C library for embedding:
//
//	go build -buildmode=c-shared -o libgtpengine.so ./cmd/libgtpengine
//
// Every function returns a gtp_result whose status is 0 on success and 1
// on failure. The result string must be released with gtp_free_string,
// except for an engine handle, which is released by gtp_free_engine.
package main

/*
#include <stddef.h>
#include <stdlib.h>

struct gtp_result {
	char* result;
	int status;
};
*/
import "C"

import (
	"unsafe"
)

func makeResult(ok bool, text string) C.struct_gtp_result {
	status := C.int(0)
	if !ok {
		status = 1
	}
	return C.struct_gtp_result{result: C.CString(text), status: status}
}

// gtp_create_engine creates an engine from the YAML settings file at
// settings_path and runs the command file at setup_path. Either path may
// be NULL. On success the result is the engine handle.
//
//export gtp_create_engine
func gtp_create_engine(settingsPath, setupPath *C.char) C.struct_gtp_result {
	handle, err := createEngine(goString(settingsPath), goString(setupPath))
	if err != nil {
		return makeResult(false, err.Error())
	}
	return makeResult(true, handle)
}

// gtp_process_command executes one command line of cmdlen bytes. The
// result is the response text.
//
//export gtp_process_command
func gtp_process_command(handle, cmd *C.char, cmdlen C.size_t) C.struct_gtp_result {
	var line string
	if cmd != nil {
		line = C.GoStringN(cmd, C.int(cmdlen))
	}
	ok, response := processCommand(goString(handle), line)
	return makeResult(ok, response)
}

// gtp_free_engine destroys the engine and releases its handle.
//
//export gtp_free_engine
func gtp_free_engine(handle *C.char) {
	if handle == nil {
		return
	}
	freeEngine(C.GoString(handle))
	C.free(unsafe.Pointer(handle))
}

// gtp_free_string releases a result string.
//
//export gtp_free_string
func gtp_free_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}
