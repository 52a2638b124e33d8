package config

import (
	"os"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Starter is the set of answers the init wizard collects before writing a
// config file; it mirrors Options but keeps zero values meaningful (an
// empty PortQueues map is "no bindings yet", not an error).
type Starter struct {
	Mode         Mode
	ExactFlows   bool
	MaxIdle      int
	DefaultQueue uint32
	PortQueues   map[string]uint32
}

// WriteStarter renders a Starter as HCL and writes it to path.
func WriteStarter(path string, s Starter) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("mode", cty.StringVal(string(s.Mode)))
	body.SetAttributeValue("exact_flows", cty.BoolVal(s.ExactFlows))
	body.SetAttributeValue("max_idle", cty.NumberIntVal(int64(s.MaxIdle)))
	body.SetAttributeValue("default_queue", cty.NumberIntVal(int64(s.DefaultQueue)))

	for name, queueID := range s.PortQueues {
		block := body.AppendNewBlock("port_queue", []string{name})
		block.Body().SetAttributeValue("queue_id", cty.NumberIntVal(int64(queueID)))
	}

	return os.WriteFile(path, f.Bytes(), 0o644)
}
