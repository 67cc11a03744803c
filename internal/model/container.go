package model

// ContainerStatus is the part of the engine's inspect document the gateway
// exposes. The JSON field names follow the engine's own spelling.
type ContainerStatus struct {
	Name  string `json:"Name"`
	State State  `json:"State"`

	Running bool `json:"-"`
	Tty     bool `json:"-"`
}

// State edustaa containerin tilaa
type State struct {
	Status string `json:"Status"`
}
