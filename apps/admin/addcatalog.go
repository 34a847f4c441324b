package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) addTeacher(name string) error {
	t, err := cli.catRepo.CreateTeacher(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Printf("teacher %d: %s\n", t.ID, t.Name)
	return nil
}

func (cli *commandLine) addSubject(name string) error {
	s, err := cli.catRepo.CreateSubject(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Printf("subject %d: %s\n", s.ID, s.Name)
	return nil
}

func (cli *commandLine) addLevel(name string) error {
	l, err := cli.catRepo.CreateLevel(context.Background(), name)
	if err != nil {
		return err
	}
	fmt.Printf("level %d: %s\n", l.ID, l.Name)
	return nil
}
