package source

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
	"github.com/pkg/errors"
)

// CheckDatagram validates the structure of a raw datagram document: at least
// one step, every step carries a non-empty "data" array and every timestep a
// numeric "uts".
func CheckDatagram(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(ErrInvalidDocument, err.Error())
	}

	steps, err := jsonpath.Get("$.steps", doc)
	if err != nil {
		return errors.Wrap(ErrInvalidDocument, err.Error())
	}
	list, ok := steps.([]any)
	if !ok || len(list) == 0 {
		return errors.Wrap(ErrInvalidDocument, `"steps" must be a non-empty array`)
	}

	for i := range list {
		data, err := jsonpath.Get(fmt.Sprintf("$.steps[%d].data", i), doc)
		if err != nil {
			return errors.Wrapf(ErrInvalidDocument, "step %d: %v", i, err)
		}
		timesteps, ok := data.([]any)
		if !ok || len(timesteps) == 0 {
			return errors.Wrapf(ErrInvalidDocument, `step %d: "data" must be a non-empty array`, i)
		}
		for j := range timesteps {
			uts, err := jsonpath.Get(fmt.Sprintf("$.steps[%d].data[%d].uts", i, j), doc)
			if err != nil {
				return errors.Wrapf(ErrInvalidDocument, `step %d timestep %d: missing "uts"`, i, j)
			}
			if _, ok := uts.(float64); !ok {
				return errors.Wrapf(ErrInvalidDocument, `step %d timestep %d: "uts" is not a number`, i, j)
			}
		}
	}

	return nil
}
