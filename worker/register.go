package worker

import (
	"context"
	"fmt"
	"reflect"
)

var (
	requestType  = reflect.TypeOf((*Request)(nil))
	responseType = reflect.TypeOf((*Response)(nil))
	ctxType      = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Register scans rcvr's exported methods and installs each one matching
//
//	func (h *T) EventName(ctx context.Context, req *Request, resp *Response)
//
// as a handler for the event named after the method, the reflection
// counterpart to calling On by hand for every event a service exposes.
// It returns an error, rather than registering nothing silently, if
// rcvr exposes no matching method.
func Register(s *Session, rcvr any) error {
	v := reflect.ValueOf(rcvr)
	t := v.Type()

	registered := 0
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		ft := m.Func.Type()
		if ft.NumIn() != 4 || ft.NumOut() != 0 {
			continue
		}
		if ft.In(1) != ctxType || ft.In(2) != requestType || ft.In(3) != responseType {
			continue
		}

		method := v.Method(i)
		s.On(m.Name, func(ctx context.Context, req *Request, resp *Response) error {
			method.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(req), reflect.ValueOf(resp)})
			return nil
		})
		registered++
	}

	if registered == 0 {
		return fmt.Errorf("worker: %T exposes no func(context.Context, *Request, *Response) methods", rcvr)
	}
	return nil
}
