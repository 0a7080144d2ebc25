package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	goserde "github.com/reoring/goserde"
)

var (
	compileType      string
	compileDirection string

	transcodeType   string
	transcodeIn     string
	transcodePretty bool

	warmTypes []string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a type signature and print its program",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := goserde.ParseType(compileType)
		if err != nil {
			return err
		}
		dir := goserde.Encode
		switch compileDirection {
		case "encode":
		case "decode":
			dir = goserde.Decode
		default:
			return fmt.Errorf("unknown direction %q", compileDirection)
		}
		m, err := newMarshaller()
		if err != nil {
			return err
		}
		p, err := m.Program(t, dir)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), p.Dump())
		return err
	},
}

var transcodeCmd = &cobra.Command{
	Use:   "transcode",
	Short: "Decode JSON as a type and encode it again",
	Long:  "Reads JSON from --in (or stdin), decodes it with the type's decode program and writes the re-encoded value to stdout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := goserde.ParseType(transcodeType)
		if err != nil {
			return err
		}
		m, err := newMarshaller()
		if err != nil {
			return err
		}
		if transcodePretty {
			m = m.With(m.Config().WithFlags(m.Config().Flags() | goserde.FlagPrettyPrint))
		}
		var v any
		if transcodeIn == "" || transcodeIn == "-" {
			v, err = m.Decode(cmd.Context(), t, goserde.JSONReader(bufio.NewReader(cmd.InOrStdin())), goserde.DecodeOptions{Resource: "stdin"})
		} else {
			v, err = m.DecodeFile(cmd.Context(), t, transcodeIn)
		}
		if err != nil {
			return err
		}
		out := bufio.NewWriter(cmd.OutOrStdout())
		if err := m.EncodeTo(cmd.Context(), out, t, v); err != nil {
			return err
		}
		if _, err := out.WriteString("\n"); err != nil {
			return err
		}
		return out.Flush()
	},
}

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Compile types in both directions into the persistent store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.CacheDir == "" {
			return fmt.Errorf("warm needs --cache-dir or GOSERDE_CACHE_DIR")
		}
		m, err := newMarshaller()
		if err != nil {
			return err
		}
		for _, sig := range warmTypes {
			t, err := goserde.ParseType(sig)
			if err != nil {
				return err
			}
			for _, dir := range []goserde.Direction{goserde.Encode, goserde.Decode} {
				if _, err := m.Program(t, dir); err != nil {
					return err
				}
				key := goserde.CacheKey{Type: t.Signature(), Config: m.Config().Hash(), Direction: dir}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", key.Digest(), dir, t.Signature())
			}
		}
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVarP(&compileType, "type", "t", "", "type signature, e.g. list<User>")
	compileCmd.Flags().StringVarP(&compileDirection, "direction", "d", "encode", "encode|decode")
	_ = compileCmd.MarkFlagRequired("type")

	transcodeCmd.Flags().StringVarP(&transcodeType, "type", "t", "", "type signature")
	transcodeCmd.Flags().StringVarP(&transcodeIn, "in", "i", "-", "input file, - for stdin")
	transcodeCmd.Flags().BoolVar(&transcodePretty, "pretty", false, "pretty print output")
	_ = transcodeCmd.MarkFlagRequired("type")

	warmCmd.Flags().StringSliceVarP(&warmTypes, "type", "t", nil, "type signatures to compile (repeatable)")
	_ = warmCmd.MarkFlagRequired("type")
}
