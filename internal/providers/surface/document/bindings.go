package document

import (
	"strings"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// install defines the document API on vm. Every binding resolves the
// current page at call time, so one runtime serves successive documents.
func (a *Adapter) install(vm *goja.Runtime) error {
	global := vm.GlobalObject()

	document := vm.NewObject()
	if err := document.DefineAccessorProperty("title",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			if p := a.currentPage(); p != nil {
				return vm.ToValue(p.Title())
			}
			return vm.ToValue("")
		}),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			a.setTitle(call.Argument(0).String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return err
	}
	if err := document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		p := a.currentPage()
		if p == nil {
			return goja.Null()
		}
		found := p.Query(call.Argument(0).String(), 1)
		if len(found) == 0 {
			return goja.Null()
		}
		return elementValue(vm, found[0])
	}); err != nil {
		return err
	}
	if err := document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		var values []any
		if p := a.currentPage(); p != nil {
			for _, el := range p.Query(call.Argument(0).String(), 0) {
				values = append(values, elementValue(vm, el))
			}
		}
		return vm.NewArray(values...)
	}); err != nil {
		return err
	}
	if err := document.Set("evaluateXPath", func(call goja.FunctionCall) goja.Value {
		p := a.currentPage()
		if p == nil {
			return vm.NewArray()
		}
		matches, err := p.XPath(call.Argument(0).String())
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		values := make([]any, 0, len(matches))
		for _, m := range matches {
			obj := vm.NewObject()
			_ = obj.Set("text", m.Text)
			_ = obj.Set("html", m.HTML)
			values = append(values, obj)
		}
		return vm.NewArray(values...)
	}); err != nil {
		return err
	}
	if err := global.Set("document", document); err != nil {
		return err
	}

	location := vm.NewObject()
	if err := location.DefineAccessorProperty("href",
		vm.ToValue(func(goja.FunctionCall) goja.Value {
			if p := a.currentPage(); p != nil {
				return vm.ToValue(p.URL())
			}
			return vm.ToValue("about:blank")
		}),
		nil, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return err
	}
	if err := global.Set("location", location); err != nil {
		return err
	}

	postMessage := func(call goja.FunctionCall) goja.Value {
		a.postMessage(export(call.Argument(0)))
		return goja.Undefined()
	}
	if err := global.Set("window", global); err != nil {
		return err
	}
	if err := global.Set("postMessage", postMessage); err != nil {
		return err
	}
	// react-native-webview pages post through this object
	bridge := vm.NewObject()
	if err := bridge.Set("postMessage", postMessage); err != nil {
		return err
	}
	if err := global.Set("ReactNativeWebView", bridge); err != nil {
		return err
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, a.consoleFunc(level)); err != nil {
			return err
		}
	}
	return global.Set("console", console)
}

// elementValue exposes an element snapshot with getAttribute
func elementValue(vm *goja.Runtime, el element) goja.Value {
	obj := vm.NewObject()
	_ = obj.Set("tagName", el.TagName)
	_ = obj.Set("id", el.ID)
	_ = obj.Set("className", el.ClassName)
	_ = obj.Set("textContent", el.TextContent)
	_ = obj.Set("innerHTML", el.InnerHTML)
	_ = obj.Set("outerHTML", el.OuterHTML)
	_ = obj.Set("getAttribute", func(name string) goja.Value {
		if v, ok := el.Attributes[name]; ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	return obj
}

func (a *Adapter) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !a.cfg.Debug {
			return goja.Undefined()
		}
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		a.log.Info("console."+level, zap.String("message", strings.Join(parts, " ")))
		return goja.Undefined()
	}
}

func (a *Adapter) postMessage(data any) {
	url := ""
	if p := a.currentPage(); p != nil {
		url = p.URL()
	}
	a.emit(types.Event{Type: types.EventMessage, URL: url, Data: data})
}

func (a *Adapter) setTitle(title string) {
	p := a.currentPage()
	if p == nil {
		return
	}
	if p.Title() == title {
		return
	}
	p.SetTitle(title)
	a.emit(types.Event{Type: types.EventTitleChange, URL: p.URL(), Title: title})
}
