// Copyright (c) 2026 John Earle
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

// parsecheck runs the intake form parser over a message and prints the
// result as JSON. Handy for tuning the vocabulary without a running service:
//
//	parsecheck "Name: Jane Smith
//	Project: Science Fair"
//
//	echo "Nom: Jean\nProjet: Robotique" | parsecheck -sender +237600000000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/formbot/intake/internal/parser"
)

func main() {
	sender := flag.String("sender", "", "sender phone number used as the phone fallback")
	flag.Parse()

	var message string
	if flag.NArg() > 0 {
		message = strings.Join(flag.Args(), " ")
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
			os.Exit(1)
		}
		message = string(data)
	}

	if strings.TrimSpace(message) == "" {
		fmt.Fprintln(os.Stderr, "usage: parsecheck [-sender NUMBER] MESSAGE (or message on stdin)")
		os.Exit(2)
	}

	p := parser.New(parser.DefaultVocabulary())
	result := p.Parse(message, *sender)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
