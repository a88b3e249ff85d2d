package kv

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if err := kvClient.Set(key, []byte(value)); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if value, loaded, err := kvClient.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, value=%s\n", key, loaded, value)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if existed, err := kvClient.Delete(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, deleted=%t\n", key, existed)
			}
			return nil
		},
	}
)
