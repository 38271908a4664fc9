package artifact

import (
	"bytes"
	"encoding/gob"
)

// LabelList is the cached label column of the training split.
type LabelList []string

func (l LabelList) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode([]string(l)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *LabelList) UnmarshalBinary(data []byte) error {
	var decoded []string
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&decoded); err != nil {
		return err
	}
	if decoded == nil {
		decoded = []string{}
	}
	*l = decoded
	return nil
}

func (l LabelList) Shape() (rows, cols int) {
	return len(l), 1
}
