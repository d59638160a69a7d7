// Package main implements the C ABI surface: a cgo-exported shim buildable
// with -buildmode=c-shared (or linked statically into a C host). Opaque
// handles are int64 values keyed into a process-wide connector table;
// session/variable/file identifiers are NUL-terminated UTF-8; functions
// returning string pointers allocate through a per-function string arena
// that the next call to the same function overwrites.
package main

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	openisl "github.com/esimstech/openisl-go"
)

var (
	handles sync.Map // int64 -> *openisl.Connector
	nextID  int64
	arenaMu sync.Mutex
	arena   = make(map[string]*C.char)
)

func connectorFor(h C.longlong) *openisl.Connector {
	v, ok := handles.Load(int64(h))
	if !ok {
		return nil
	}
	return v.(*openisl.Connector)
}

func copyOut(dst unsafe.Pointer, buf []byte) {
	if len(buf) == 0 {
		return
	}
	C.memcpy(dst, unsafe.Pointer(&buf[0]), C.size_t(len(buf)))
}

func returnString(fn, s string) *C.char {
	arenaMu.Lock()
	defer arenaMu.Unlock()
	if old, ok := arena[fn]; ok {
		C.free(unsafe.Pointer(old))
	}
	cs := C.CString(s)
	arena[fn] = cs
	return cs
}

// Error codes, negative values classify the failure point; 0 is success.
const (
	errOK         = 0
	errBadHandle  = -1
	errOperation  = -2
	errInvalidArg = -3
)

//
// Lifecycle
//

//export ConnectInit
func ConnectInit(isOwner C.int) C.longlong {
	id := atomic.AddInt64(&nextID, 1)
	c := openisl.NewConnector("")
	_ = isOwner
	handles.Store(id, c)
	return C.longlong(id)
}

//export ConnectFree
func ConnectFree(h C.longlong) {
	handles.Delete(int64(h))
}

//export ConnectNew
func ConnectNew(h C.longlong, name *C.char) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	replaced := openisl.NewConnector(C.GoString(name))
	handles.Store(int64(h), replaced)
	return errOK
}

//export ConnectLoad
func ConnectLoad(h C.longlong, file *C.char) C.int {
	loaded, err := openisl.Load(C.GoString(file))
	if err != nil {
		return errOperation
	}
	handles.Store(int64(h), loaded)
	return errOK
}

//export ConnectCheck
func ConnectCheck(h C.longlong) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.Check(); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectSave
func ConnectSave(h C.longlong, file *C.char) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.Save(C.GoString(file)); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectCreate
func ConnectCreate(h C.longlong, session *C.char) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.Create(C.GoString(session)); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectConnect
func ConnectConnect(h C.longlong, waitMs C.int) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.Connect(time.Duration(waitMs) * time.Millisecond); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectDisconnect
func ConnectDisconnect(h C.longlong) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.Disconnect(); err != nil {
		return errOperation
	}
	return errOK
}

//
// Config getters/setters — a single table-driven dispatcher per value
// type rather than one hand-written pair per field.
//

type stringField struct {
	get func(*openisl.Connector) string
	set func(*openisl.Connector, string) error
}

var stringFields = map[string]stringField{
	"name":    {get: (*openisl.Connector).Name},
	"session": {get: (*openisl.Connector).SessionID, set: (*openisl.Connector).SetSessionID},
	"file":    {get: (*openisl.Connector).File, set: (*openisl.Connector).SetFile},
	"id":      {get: (*openisl.Connector).ID},
	"type":    {get: (*openisl.Connector).TypeTag},
}

//export ConnectGetConfigString
func ConnectGetConfigString(h C.longlong, key *C.char) *C.char {
	c := connectorFor(h)
	if c == nil {
		return nil
	}
	k := C.GoString(key)
	field, ok := stringFields[k]
	if !ok || field.get == nil {
		return nil
	}
	return returnString("ConnectGetConfigString", field.get(c))
}

//export ConnectSetConfigString
func ConnectSetConfigString(h C.longlong, key, value *C.char) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	field, ok := stringFields[C.GoString(key)]
	if !ok || field.set == nil {
		return errInvalidArg
	}
	if err := field.set(c, C.GoString(value)); err != nil {
		return errOperation
	}
	return errOK
}

type floatField struct {
	get func(*openisl.Connector) float64
}

var floatFields = map[string]floatField{
	"timeout":       {get: (*openisl.Connector).Timeout},
	"starttime":     {get: (*openisl.Connector).StartTime},
	"endtime":       {get: (*openisl.Connector).EndTime},
	"stepsize":      {get: (*openisl.Connector).StepSize},
	"steptolerance": {get: (*openisl.Connector).StepTolerance},
}

//export ConnectGetConfigFloat64
func ConnectGetConfigFloat64(h C.longlong, key *C.char) C.double {
	c := connectorFor(h)
	if c == nil {
		return 0
	}
	field, ok := floatFields[C.GoString(key)]
	if !ok {
		return 0
	}
	return C.double(field.get(c))
}

//export ConnectSetTimeout
func ConnectSetTimeout(h C.longlong, seconds C.double) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.SetTimeout(float64(seconds)); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectSetTimes
func ConnectSetTimes(h C.longlong, start, end, step C.double) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.SetTimes(float64(start), float64(end), float64(step)); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectGetUid
func ConnectGetUid(h C.longlong) C.uint {
	c := connectorFor(h)
	if c == nil {
		return 0
	}
	return C.uint(c.UID())
}

//export ConnectSetViewer
func ConnectSetViewer(h C.longlong, viewer C.int) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.SetViewer(viewer != 0); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectGetViewer
func ConnectGetViewer(h C.longlong) C.int {
	c := connectorFor(h)
	if c == nil {
		return 0
	}
	if c.IsViewer() {
		return 1
	}
	return 0
}

//export ConnectGetTerminated
func ConnectGetTerminated(h C.longlong) C.int {
	c := connectorFor(h)
	if c == nil {
		return 0
	}
	if c.IsTerminated() {
		return 1
	}
	return 0
}

//export ConnectSetTerminated
func ConnectSetTerminated(h C.longlong, terminated C.int) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.SetTerminated(terminated != 0); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectSetStopMode
func ConnectSetStopMode(h C.longlong, mode C.int) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	m := openisl.StopModeStop
	if mode != 0 {
		m = openisl.StopModeExit
	}
	if err := c.SetStopMode(m); err != nil {
		return errOperation
	}
	return errOK
}

//
// I/O catalog
//

//export ConnectNewIO
func ConnectNewIO(h C.longlong, id, name *C.char, causality, kind, size C.int) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	ca := openisl.Input
	if causality != 0 {
		ca = openisl.Output
	}
	var k openisl.Kind
	switch kind {
	case 0:
		k = openisl.KindReal
	case 1:
		k = openisl.KindInteger
	case 2, 3:
		k = openisl.KindBoolean
	default:
		k = openisl.KindString
	}
	if _, err := c.NewIO(C.GoString(id), C.GoString(name), ca, k, int(size)); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectIOSetConnectID
func ConnectIOSetConnectID(h C.longlong, ioID, connectID *C.char) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	v, ok := c.IO(C.GoString(ioID))
	if !ok {
		return errInvalidArg
	}
	v.SetConnectID(C.GoString(connectID))
	return errOK
}

//export ConnectGetNbIOs
func ConnectGetNbIOs(h C.longlong) C.int {
	c := connectorFor(h)
	if c == nil {
		return 0
	}
	return C.int(len(c.All()))
}

//
// Data transport
//

//export IOSetData
func IOSetData(h C.longlong, ioID *C.char, val unsafe.Pointer, length C.int, t, step C.double) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	buf := C.GoBytes(val, length)
	if err := c.SetData(C.GoString(ioID), buf, float64(t), float64(step)); err != nil {
		return errOperation
	}
	return errOK
}

//export IOGetData
func IOGetData(h C.longlong, ioID *C.char, out unsafe.Pointer, length C.int, outTime, outStep *C.double) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	buf := make([]byte, int(length))
	t, step, err := c.GetData(C.GoString(ioID), buf)
	if err != nil {
		return errOperation
	}
	copyOut(out, buf)
	if outTime != nil {
		*outTime = C.double(t)
	}
	if outStep != nil {
		*outStep = C.double(step)
	}
	return errOK
}

//export IOGetDataAt
func IOGetDataAt(h C.longlong, ioID *C.char, out unsafe.Pointer, length C.int, inTime C.double, outTime *C.double) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	buf := make([]byte, int(length))
	t, err := c.GetDataAt(C.GoString(ioID), buf, float64(inTime))
	if err != nil {
		return errOperation
	}
	copyOut(out, buf)
	if outTime != nil {
		*outTime = C.double(t)
	}
	return errOK
}

//export IOSetEventData
func IOSetEventData(h C.longlong, ioID *C.char, val unsafe.Pointer, length C.int) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	buf := C.GoBytes(val, length)
	if err := c.SetEventData(C.GoString(ioID), buf); err != nil {
		return errOperation
	}
	return errOK
}

//export IOGetEventData
func IOGetEventData(h C.longlong, ioID *C.char, out unsafe.Pointer, length C.int) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	buf := make([]byte, int(length))
	if err := c.GetEventData(C.GoString(ioID), buf); err != nil {
		return errOperation
	}
	copyOut(out, buf)
	return errOK
}

//export IOStoreData
func IOStoreData(h C.longlong, ioID *C.char) C.int {
	// Reserved for the future persistence layer; always succeeds today.
	return errOK
}

//
// Stop bus
//

//export SendStopRequest
func SendStopRequest() C.int {
	if err := openisl.SendStopRequest(); err != nil {
		return errOperation
	}
	return errOK
}

//export SendStopSession
func SendStopSession(session *C.char) C.int {
	if err := openisl.SendStopSession(C.GoString(session)); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectListenToExitSession
func ConnectListenToExitSession(h C.longlong) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := c.ListenToExitSession(); err != nil {
		return errOperation
	}
	return errOK
}

//export ConnectSendStopSession
func ConnectSendStopSession(h C.longlong) C.int {
	c := connectorFor(h)
	if c == nil {
		return errBadHandle
	}
	if err := openisl.SendStopSession(c.SessionID()); err != nil {
		return errOperation
	}
	return errOK
}

//
// Registry scan
//

//export SimsGetMaxNb
func SimsGetMaxNb() C.int {
	n, err := openisl.SimsGetMaxNb()
	if err != nil {
		return 0
	}
	return C.int(n)
}

//export SimsGetName
func SimsGetName(i C.int) *C.char {
	e, err := openisl.SimsGet(int(i))
	if err != nil {
		return nil
	}
	return returnString("SimsGetName", e.Name)
}

//export SimsGetSessionId
func SimsGetSessionId(i C.int) *C.char {
	e, err := openisl.SimsGet(int(i))
	if err != nil {
		return nil
	}
	return returnString("SimsGetSessionId", e.Session)
}

//export SimsGetPID
func SimsGetPID(i C.int) C.ulonglong {
	e, err := openisl.SimsGet(int(i))
	if err != nil {
		return 0
	}
	return C.ulonglong(e.PID)
}

//export SimsGetId
func SimsGetId(i C.int) C.uint {
	e, err := openisl.SimsGet(int(i))
	if err != nil {
		return 0
	}
	return C.uint(e.ID)
}

func main() {}
