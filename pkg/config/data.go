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

package config

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// Data is configuration data keyed by module name.
type Data map[string]interface{}

// parseData unmarshals raw YAML into configuration data.
func parseData(raw []byte) (Data, error) {
	data := Data{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// objectData converts a module configuration object into data.
func objectData(obj interface{}) (Data, error) {
	raw, err := yaml.Marshal(obj)
	if err != nil {
		return nil, configError("failed to marshal %T: %v", obj, err)
	}
	data, err := parseData(raw)
	if err != nil {
		return nil, configError("failed to unmarshal %T: %v", obj, err)
	}
	return data, nil
}

// module returns the data of the named module, nil if it has none.
func (d Data) module(name string) (Data, error) {
	if obj := d[name]; obj != nil {
		return objectData(obj)
	}
	return nil, nil
}

// String returns the data as YAML.
func (d Data) String() string {
	raw, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Sprintf("<invalid configuration data: %v>", err)
	}
	return string(raw)
}
