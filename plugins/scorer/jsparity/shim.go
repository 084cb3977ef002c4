package jsparity

import (
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"

	"bsparity/pkg/contract"
)

// 默认字号：协作方的 getScrollLineHeight 只读取 fontSize 并 parseInt。
const defaultFontSize = "16px"

// shim 为评分脚本提供最小浏览器全局替身。
// 所有访问器返回固定值，不做真实布局；未知容器 id 直接抛出并记录 ErrShimMismatch。
type shim struct {
	vm        *goja.Runtime
	summaryID string
	summary   *goja.Object
	console   io.Writer
	prefix    string

	// mismatch 记录首个未模拟能力的请求；即使脚本 catch 住异常也会在调用返回后上报。
	mismatch error
}

func installShim(vm *goja.Runtime, summaryID string, console io.Writer, prefix string) (*shim, error) {
	s := &shim{
		vm:        vm,
		summaryID: summaryID,
		summary:   vm.NewObject(),
		console:   console,
		prefix:    prefix,
	}
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }

	body := vm.NewObject()
	doc := vm.NewObject()
	win := vm.NewObject()
	con := vm.NewObject()
	steps := []struct {
		obj  *goja.Object
		name string
		v    any
	}{
		{body, "appendChild", noop},
		{body, "removeChild", noop},
		{doc, "body", body},
		{doc, "createElement", s.createElement},
		{doc, "getElementById", s.getElementById},
		{win, "getComputedStyle", s.getComputedStyle},
		{win, "parseInt", vm.Get("parseInt")},
		{win, "document", doc},
		{con, "log", s.consoleLine("")},
		{con, "info", s.consoleLine("")},
		{con, "debug", s.consoleLine("")},
		{con, "warn", s.consoleLine("warn: ")},
		{con, "error", s.consoleLine("error: ")},
	}
	for _, st := range steps {
		if err := st.obj.Set(st.name, st.v); err != nil {
			return nil, fmt.Errorf("set %s: %w", st.name, err)
		}
	}
	for name, v := range map[string]*goja.Object{"document": doc, "window": win, "console": con} {
		if err := vm.Set(name, v); err != nil {
			return nil, fmt.Errorf("set global %s: %w", name, err)
		}
	}
	return s, nil
}

func (s *shim) createElement(call goja.FunctionCall) goja.Value {
	el := s.vm.NewObject()
	_ = el.Set("tagName", strings.ToUpper(call.Argument(0).String()))
	_ = el.Set("style", s.vm.NewObject())
	return el
}

func (s *shim) getElementById(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).String()
	if id == s.summaryID {
		return s.summary
	}
	err := fmt.Errorf("%w: document.getElementById(%q), only %q is emulated", contract.ErrShimMismatch, id, s.summaryID)
	if s.mismatch == nil {
		s.mismatch = err
	}
	panic(s.vm.NewGoError(err))
}

func (s *shim) getComputedStyle(goja.FunctionCall) goja.Value {
	st := s.vm.NewObject()
	_ = st.Set("fontSize", defaultFontSize)
	return st
}

// consoleLine 将 console.* 重定向到副通道；主通道只留给 Verdict。
func (s *shim) consoleLine(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		if s.console != nil {
			_, _ = io.WriteString(s.console, s.prefix+level+strings.Join(parts, " ")+"\n")
		}
		return goja.Undefined()
	}
}

// summaryText 返回摘要容器当前的 textContent（可能为空）。
func (s *shim) summaryText() string {
	v := s.summary.Get("textContent")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
