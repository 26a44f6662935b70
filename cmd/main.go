package main

import (
	"encoding/json"
	"fmt"
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/oleforms"
)

var (
	app  = kingpin.New("oleforms", "Extract UserForm variables from Office files.")
	file = app.Arg("file", "File to load").Required().String()
	raw  = app.Flag("raw", "Emit raw bytes instead of decoded strings").Bool()
)

type variable struct {
	Name            string
	Tag             string
	ID              uint32
	TabIndex        uint16
	ClsidCacheIndex uint16
	Value           *string
}

func doParse() error {
	variables, err := oleforms.ParseFile(*file)
	if err != nil {
		return err
	}

	var serialized []byte
	if *raw {
		serialized, err = json.MarshalIndent(variables, " ", " ")
	} else {
		decoded := make([]variable, 0, len(variables))
		for _, v := range variables {
			item := variable{
				Name:            oleforms.DecodeFormString(v.Name),
				Tag:             oleforms.DecodeFormString(v.Tag),
				ID:              v.ID,
				TabIndex:        v.TabIndex,
				ClsidCacheIndex: v.ClsidCacheIndex,
			}
			if v.Value != nil {
				value := oleforms.DecodeFormString(v.Value)
				item.Value = &value
			}
			decoded = append(decoded, item)
		}
		serialized, err = json.MarshalIndent(decoded, " ", " ")
	}
	kingpin.FatalIfError(err, "JSON")

	fmt.Println(string(serialized))

	return nil
}

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate).DefaultEnvars()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	err := doParse()
	kingpin.FatalIfError(err, "Parsing")
}
