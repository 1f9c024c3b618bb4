package contract

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veridata/ingot/errors"
)

// LoadFile reads and validates a contract from a YAML file.
//
// Example contract:
//
//	dataset: payments
//	version: 1.0.0
//	primary_key: [payment_id]
//	columns:
//	  - name: payment_id
//	    type: string
//	    nullable: false
//	  - name: amount
//	    type: float
//	    nullable: false
//	    min: 0
func LoadFile(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read contract file %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a contract from YAML bytes.
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse contract YAML")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
