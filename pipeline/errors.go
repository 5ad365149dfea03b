package pipeline

import "errors"

var errEgressInterfaceMissing = errors.New("pipeline: route names an interface not present in the registry")
