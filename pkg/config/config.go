// Copyright 2022 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config implements runtime configuration split into named modules.
//
// Each module registers a pointer to its configuration data together with
// a function returning the defaults. Configuration is given as YAML, with a
// top-level key per module. Modules can be notified about updates and can
// reject them, in which case the whole configuration is reverted.
package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"sigs.k8s.io/yaml"
)

// Source describes where configuration data comes from.
type Source string

const (
	// ConfigFile is a YAML configuration file.
	ConfigFile Source = "configuration file"
	// External is an external configuration source, for instance an HTTP request.
	External Source = "external configuration"
	// Defaults is the built-in default configuration.
	Defaults Source = "default configuration"
	// ConfigBackup is a backup of a previous configuration.
	ConfigBackup Source = "configuration backup"
)

// Event describes why a notification callback is invoked.
type Event string

const (
	// UpdateEvent is the event for a configuration update.
	UpdateEvent Event = "updated"
	// RevertEvent is the event for a configuration rollback.
	RevertEvent Event = "reverted"
)

// NotifyFn is a configuration change notification callback.
type NotifyFn func(Event, Source) error

// Validator is implemented by configuration data which can check itself.
type Validator interface {
	Validate() error
}

// Module is a named piece of the configuration.
type Module struct {
	name     string
	help     string
	ptr      interface{}
	defaults func() interface{}
	notify   []NotifyFn
}

// Option is an option applicable to a Module.
type Option func(*Module)

// WithNotify registers a notification callback for a module.
func WithNotify(fn NotifyFn) Option {
	return func(m *Module) {
		m.notify = append(m.notify, fn)
	}
}

var (
	lock    sync.Mutex
	modules = make(map[string]*Module)
)

// Register registers a configuration module. ptr points to the data of the
// module, defaults returns a pointer to data of the same type with default
// values. Registration errors are programming errors and cause a panic.
func Register(name, help string, ptr interface{}, defaults func() interface{}, opts ...Option) *Module {
	if err := checkRegistration(name, ptr, defaults); err != nil {
		panic(err)
	}

	m := &Module{
		name:     name,
		help:     help,
		ptr:      ptr,
		defaults: defaults,
	}
	for _, o := range opts {
		o(m)
	}

	lock.Lock()
	defer lock.Unlock()

	if _, ok := modules[name]; ok {
		panic(configError("module %q already registered", name))
	}
	modules[name] = m
	m.set(defaults())

	return m
}

func checkRegistration(name string, ptr interface{}, defaults func() interface{}) error {
	if name == "" || strings.ContainsAny(name, ". ") {
		return configError("invalid module name %q", name)
	}
	if defaults == nil {
		return configError("module %q: nil defaults", name)
	}
	pt := reflect.TypeOf(ptr)
	if pt == nil || pt.Kind() != reflect.Ptr || reflect.ValueOf(ptr).IsNil() {
		return configError("module %q: data must be a non-nil pointer, got %T", name, ptr)
	}
	if dt := reflect.TypeOf(defaults()); dt != pt {
		return configError("module %q: defaults type %v differs from data type %v", name, dt, pt)
	}
	return nil
}

// Name returns the name of the module.
func (m *Module) Name() string {
	return m.name
}

// Help returns the help text of the module.
func (m *Module) Help() string {
	return m.help
}

// set copies the data pointed to by obj into the module data.
func (m *Module) set(obj interface{}) {
	reflect.ValueOf(m.ptr).Elem().Set(reflect.ValueOf(obj).Elem())
}

// parse creates module data from defaults overridden by data.
func (m *Module) parse(data Data) (interface{}, error) {
	obj := m.defaults()
	if data == nil {
		return obj, nil
	}
	raw, err := yaml.Marshal(data)
	if err != nil {
		return nil, configError("module %q: failed to marshal data: %v", m.name, err)
	}
	if err := yaml.UnmarshalStrict(raw, obj); err != nil {
		return nil, configError("module %q: %v", m.name, err)
	}
	if v, ok := obj.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, configError("module %q: %v", m.name, err)
		}
	}
	return obj, nil
}

// ParseYAMLFile reads and activates configuration from a YAML file.
func ParseYAMLFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return configError("failed to read %q: %v", path, err)
	}
	data, err := parseData(raw)
	if err != nil {
		return configError("failed to parse %q: %v", path, err)
	}
	return apply(data, ConfigFile)
}

// ParseYAMLData activates configuration from raw YAML data.
func ParseYAMLData(raw []byte, source Source) error {
	data, err := parseData(raw)
	if err != nil {
		return configError("failed to parse configuration: %v", err)
	}
	return apply(data, source)
}

// Reset resets every module to its defaults.
func Reset() error {
	return apply(Data{}, Defaults)
}

// apply activates data as the new configuration. Modules missing from data
// revert to their defaults. On failure the previous configuration is kept.
func apply(data Data, source Source) error {
	lock.Lock()
	defer lock.Unlock()

	var errs *multierror.Error
	for key := range data {
		if _, ok := modules[key]; !ok {
			errs = multierror.Append(errs, configError("unknown module %q", key))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	parsed := make(map[string]interface{}, len(modules))
	for _, name := range sortedNames() {
		modData, err := data.module(name)
		if err != nil {
			errs = multierror.Append(errs, configError("module %q: %v", name, err))
			continue
		}
		obj, err := modules[name].parse(modData)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		parsed[name] = obj
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	backup := snapshot()
	for name, obj := range parsed {
		modules[name].set(obj)
	}

	if err := notify(UpdateEvent, source); err != nil {
		log.Error("configuration from %s rejected, reverting: %v", source, err)
		restore(backup)
		if rerr := notify(RevertEvent, ConfigBackup); rerr != nil {
			log.Error("failed to revert configuration: %v", rerr)
		}
		return err
	}

	log.Info("activated configuration from %s", source)
	return nil
}

// snapshot returns a copy of the data of every module.
func snapshot() map[string]interface{} {
	backup := make(map[string]interface{}, len(modules))
	for name, m := range modules {
		obj := reflect.New(reflect.TypeOf(m.ptr).Elem())
		obj.Elem().Set(reflect.ValueOf(m.ptr).Elem())
		backup[name] = obj.Interface()
	}
	return backup
}

func restore(backup map[string]interface{}) {
	for name, obj := range backup {
		modules[name].set(obj)
	}
}

// notify runs the notifiers of every module, collecting errors.
func notify(event Event, source Source) error {
	var errs *multierror.Error
	for _, name := range sortedNames() {
		for _, fn := range modules[name].notify {
			if err := fn(event, source); err != nil {
				errs = multierror.Append(errs, configError("module %q: %v", name, err))
			}
		}
	}
	return errs.ErrorOrNil()
}

// Dump returns the active configuration as YAML.
func Dump() string {
	lock.Lock()
	defer lock.Unlock()

	data := make(Data)
	for name, m := range modules {
		d, err := objectData(m.ptr)
		if err != nil {
			log.Error("%v", err)
			continue
		}
		data[name] = d
	}
	return data.String()
}

// Help returns the help text of the named modules, or of all modules.
func Help(names ...string) string {
	lock.Lock()
	defer lock.Unlock()

	if len(names) == 0 {
		names = sortedNames()
	}
	help := ""
	for _, name := range names {
		if m, ok := modules[name]; ok {
			help += "- " + name + ":\n" + strings.TrimRight(m.help, "\n") + "\n"
		}
	}
	return help
}

func sortedNames() []string {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func configError(format string, args ...interface{}) error {
	return fmt.Errorf("config: "+format, args...)
}
