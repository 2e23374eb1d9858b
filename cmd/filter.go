// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/dsk/filter"
	"github.com/spf13/cobra"
)

// FilterMain is wrapped by NewFilterCommand and only exported for testing
// purposes.
var FilterMain *filter.Main

// NewFilterCommand returns a new cobra command wrapping FilterMain.
func NewFilterCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	FilterMain = filter.NewMain()
	FilterMain.SetOutput(stdout, stderr)
	filterCommand := &cobra.Command{
		Use:   "filter",
		Short: "filter - remove rare features from a dataset",
		Long: `Load examples from a file, directory, S3 bucket or Kafka topic and
remove every feature seen fewer than min-cardinality times. Examples
left without features are dropped. The filtered examples, their
provenance and their feature index can be written out, and the
result can be exported to Pilosa.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err = FilterMain.Run()
			if err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			if FilterMain.MetricsAddr == "" {
				return nil
			}
			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt)
			<-signals
			return FilterMain.Close()
		},
	}
	flags := filterCommand.Flags()
	err = commandeer.Flags(flags, FilterMain)
	if err != nil {
		panic(err)
	}
	return filterCommand
}

func init() {
	subcommandFns["filter"] = NewFilterCommand
}
